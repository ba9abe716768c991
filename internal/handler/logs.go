package handler

import (
	"net/http"
	"strconv"

	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type LogHandler struct {
	DB *gorm.DB
}

func NewLogHandler(db *gorm.DB) *LogHandler {
	return &LogHandler{DB: db}
}

// List returns the caller's own audit trail, newest first, paged.
func (h *LogHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	query := h.DB.Model(&models.AuditLog{}).Where("user_id = ?", user.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to count logs")
		return
	}

	var logs []models.AuditLog
	if err := query.Order("id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&logs).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list logs")
		return
	}

	items := make([]util.Response, 0, len(logs))
	for _, entry := range logs {
		items = append(items, util.Response{
			"id":         entry.ID,
			"path":       entry.Path,
			"method":     entry.Method,
			"action":     entry.Action,
			"ip":         entry.IP,
			"user_agent": entry.UserAgent,
			"created_at": entry.CreatedAt,
		})
	}
	util.Success(c, util.Response{
		"logs":     items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}
