package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/parjanul123/MoneyManager/internal/btpay"
	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BTPayHandler struct {
	DB    *gorm.DB
	BTPay *btpay.Service
}

func NewBTPayHandler(db *gorm.DB, btpaySvc *btpay.Service) *BTPayHandler {
	return &BTPayHandler{DB: db, BTPay: btpaySvc}
}

// LiveTransactions returns the newest wallet payments, any status
// except ignored.
func (h *BTPayHandler) LiveTransactions(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.BTPay.LiveTransactions(user.ID, limit)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load transactions")
		return
	}
	util.Success(c, util.Response{"transactions": items, "count": len(items)})
}

func (h *BTPayHandler) Stats(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 {
		days = 30
	}
	stats, err := h.BTPay.GetStats(user.ID, days)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to compute stats")
		return
	}
	util.Success(c, util.Response{"stats": stats, "days": days})
}

func (h *BTPayHandler) Pending(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, total, err := h.BTPay.PendingWalletPayments(user.ID, limit)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load pending payments")
		return
	}
	util.Success(c, util.Response{
		"pending": items,
		"count":   len(items),
		"total":   total.StringFixed(2),
	})
}

// Dashboard combines stats, pending count and the hourly histogram in
// one response, mirroring what the push channel sends.
func (h *BTPayHandler) Dashboard(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	stats, err := h.BTPay.GetStats(user.ID, 30)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to build dashboard")
		return
	}
	pendingCount, err := h.BTPay.PendingCount(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to build dashboard")
		return
	}
	hourly, err := h.BTPay.HourlySummary(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to build dashboard")
		return
	}

	util.Success(c, util.Response{
		"stats":         stats,
		"pending_count": pendingCount,
		"hourly":        hourly,
		"generated_at":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *BTPayHandler) Hourly(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	buckets, err := h.BTPay.HourlySummary(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to compute hourly summary")
		return
	}
	util.Success(c, util.Response{"hours": buckets})
}

func (h *BTPayHandler) CategoryList(c *gin.Context) {
	util.Success(c, util.Response{"categories": btpay.Categories()})
}

func (h *BTPayHandler) AutoCategorize(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	categorized := h.BTPay.AutoCategorizeAll(user.ID)
	util.Success(c, util.Response{"categorized": categorized})
}

func (h *BTPayHandler) MerchantDetail(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	name := c.Param("name")
	if name == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "missing merchant name")
		return
	}
	detail, err := h.BTPay.GetMerchantDetail(user.ID, name)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load merchant detail")
		return
	}
	if detail.TotalTransactions == 0 {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "no transactions for merchant "+name)
		return
	}
	util.Success(c, util.Response{"merchant": detail})
}

const (
	streamMaxDuration     = 5 * time.Minute
	streamDefaultDuration = 60 * time.Second
	streamDefaultInterval = 5 * time.Second
)

// Stream pushes dashboard snapshots as server-sent events. interval and
// duration are seconds; the stream closes itself after duration or when
// the client goes away.
func (h *BTPayHandler) Stream(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	interval := streamDefaultInterval
	if s := c.Query("interval"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "interval must be a positive number of seconds")
			return
		}
		interval = time.Duration(n) * time.Second
	}
	duration := streamDefaultDuration
	if s := c.Query("duration"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "duration must be a positive number of seconds")
			return
		}
		duration = time.Duration(n) * time.Second
	}
	if duration > streamMaxDuration {
		duration = streamMaxDuration
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "streaming not supported")
		return
	}

	send := func(event string, data interface{}) bool {
		encoded, err := json.Marshal(data)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, encoded); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	snapshot := func() map[string]interface{} {
		data := map[string]interface{}{
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		}
		if stats, err := h.BTPay.GetStats(user.ID, 30); err == nil {
			data["stats"] = stats
		}
		if count, err := h.BTPay.PendingCount(user.ID); err == nil {
			data["pending_count"] = count
		}
		return data
	}

	if !send("snapshot", snapshot()) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-deadline.C:
			send("end", map[string]string{"reason": "duration reached"})
			return
		case <-ticker.C:
			if !send("update", snapshot()) {
				return
			}
		}
	}
}
