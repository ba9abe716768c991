package handler

import (
	"net/http"

	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SavingsHandler struct {
	DB *gorm.DB
}

func NewSavingsHandler(db *gorm.DB) *SavingsHandler {
	return &SavingsHandler{DB: db}
}

func savingsView(s *models.Savings) util.Response {
	view := util.Response{
		"id":             s.ID,
		"name":           s.Name,
		"target_amount":  s.TargetAmount.StringFixed(2),
		"current_amount": s.CurrentAmount.StringFixed(2),
		"progress":       s.ProgressPercentage(),
		"description":    s.Description,
		"is_active":      s.IsActive,
	}
	if s.Deadline != nil {
		view["deadline"] = s.Deadline.Format("2006-01-02")
	}
	return view
}

func (h *SavingsHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var goals []models.Savings
	if err := h.DB.Where("user_id = ?", user.ID).Order("id ASC").Find(&goals).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list savings goals")
		return
	}

	items := make([]util.Response, 0, len(goals))
	for i := range goals {
		items = append(items, savingsView(&goals[i]))
	}
	util.Success(c, util.Response{"savings": items})
}

type savingsRequest struct {
	Name         string `json:"name" binding:"required"`
	TargetAmount string `json:"target_amount" binding:"required"`
	Deadline     string `json:"deadline"`
	Description  string `json:"description"`
}

func (h *SavingsHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req savingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	target, err := util.ParseAmount(req.TargetAmount)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid target amount")
		return
	}
	if err := util.ValidateAmount(target); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	goal := models.Savings{
		UserID:       user.ID,
		Name:         req.Name,
		TargetAmount: target,
		Description:  req.Description,
		IsActive:     true,
	}
	if req.Deadline != "" {
		deadline, err := util.ValidateDate(req.Deadline)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid deadline")
			return
		}
		goal.Deadline = &deadline
	}

	if err := h.DB.Create(&goal).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create savings goal")
		return
	}
	util.Success(c, savingsView(&goal))
}

type savingsUpdateRequest struct {
	Name          *string `json:"name"`
	TargetAmount  *string `json:"target_amount"`
	CurrentAmount *string `json:"current_amount"`
	Deadline      *string `json:"deadline"`
	Description   *string `json:"description"`
	IsActive      *bool   `json:"is_active"`
}

func (h *SavingsHandler) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var goal models.Savings
	if err := h.DB.Where("user_id = ? AND id = ?", user.ID, c.Param("id")).First(&goal).Error; err != nil {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "savings goal not found")
		return
	}

	var req savingsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.Name != nil {
		goal.Name = *req.Name
	}
	if req.TargetAmount != nil {
		target, err := util.ParseAmount(*req.TargetAmount)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid target amount")
			return
		}
		if err := util.ValidateAmount(target); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
		goal.TargetAmount = target
	}
	if req.CurrentAmount != nil {
		current, err := util.ParseAmount(*req.CurrentAmount)
		if err != nil || current.IsNegative() {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid current amount")
			return
		}
		goal.CurrentAmount = current
	}
	if req.Deadline != nil {
		if *req.Deadline == "" {
			goal.Deadline = nil
		} else {
			deadline, err := util.ValidateDate(*req.Deadline)
			if err != nil {
				util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid deadline")
				return
			}
			goal.Deadline = &deadline
		}
	}
	if req.Description != nil {
		goal.Description = *req.Description
	}
	if req.IsActive != nil {
		goal.IsActive = *req.IsActive
	}

	if err := h.DB.Save(&goal).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to update savings goal")
		return
	}
	util.Success(c, savingsView(&goal))
}

func (h *SavingsHandler) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	result := h.DB.Where("user_id = ? AND id = ?", user.ID, c.Param("id")).Delete(&models.Savings{})
	if result.Error != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to delete savings goal")
		return
	}
	if result.RowsAffected == 0 {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "savings goal not found")
		return
	}
	util.Success(c, util.Response{"message": "savings goal deleted"})
}
