package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type ExportHandler struct {
	DB *gorm.DB
}

func NewExportHandler(db *gorm.DB) *ExportHandler {
	return &ExportHandler{DB: db}
}

var exportHeader = []string{"Date", "Type", "Amount", "Currency", "Account", "Category", "Description"}

func (h *ExportHandler) loadRows(userID uint) ([][]string, error) {
	var transactions []models.Transaction
	if err := h.DB.Preload("Account").Preload("Category").
		Where("user_id = ?", userID).
		Order("date ASC, id ASC").
		Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	rows := make([][]string, 0, len(transactions))
	for i := range transactions {
		tx := &transactions[i]
		category := ""
		if tx.Category != nil {
			category = tx.Category.Name
		}
		rows = append(rows, []string{
			tx.Date.Format("2006-01-02"),
			tx.Type,
			tx.Amount.StringFixed(2),
			tx.Account.Currency,
			tx.Account.Name,
			category,
			tx.Description,
		})
	}
	return rows, nil
}

func exportFilename(ext string) string {
	return fmt.Sprintf("transactions_%s.%s", time.Now().Format("20060102_150405"), ext)
}

// CSV streams all transactions as UTF-8 CSV. The BOM keeps Excel happy
// with non-ASCII descriptions.
func (h *ExportHandler) CSV(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	rows, err := h.loadRows(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to export transactions")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename("csv")))
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, row := range rows {
		_ = w.Write(row)
	}
	w.Flush()
}

// XLSX builds a workbook with one Transactions sheet.
func (h *ExportHandler) XLSX(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	rows, err := h.loadRows(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to export transactions")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Transactions"
	f.SetSheetName("Sheet1", sheet)

	for col, name := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, name)
	}
	for i, row := range rows {
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename("xlsx")))
	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to write workbook")
	}
}
