package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/parjanul123/MoneyManager/internal/btpay"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// Inbound command vocabulary.
const (
	CmdPing            = "ping"
	CmdRequestData     = "request_data"
	CmdRequestPending  = "request_pending"
	CmdRequestHourly   = "request_hourly"
	CmdRequestCategory = "request_categories"
	CmdAutoCategorize  = "auto_categorize"
)

// Outbound message types.
const (
	MsgPong            = "pong"
	MsgDashboardUpdate = "dashboard_update"
	MsgPendingUpdate   = "pending_update"
	MsgHourlyUpdate    = "hourly_update"
	MsgCategoryUpdate  = "category_update"
	MsgAutoCategorize  = "auto_categorize_result"
	MsgPeriodicUpdate  = "periodic_update"
	MsgError           = "error"
)

const defaultPendingPerPush = 20

type inbound struct {
	Type string `json:"type"`
}

type outbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Channel serves the live wallet-payment feed over one WebSocket
// connection per client. Every connection gets an initial snapshot,
// answers to its commands, and a periodic refresh while it stays open.
type Channel struct {
	DB       *gorm.DB
	BTPay    *btpay.Service
	Interval time.Duration
}

func NewChannel(db *gorm.DB, btpaySvc *btpay.Service, interval time.Duration) *Channel {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Channel{DB: db, BTPay: btpaySvc, Interval: interval}
}

// conn wraps the socket with a write lock, the read loop and the
// periodic push goroutine write concurrently.
type conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	userID uint
}

func (c *conn) send(msg outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// Serve runs one connection until the client disconnects or ctx ends.
// The periodic push loop is bound to the connection's lifetime.
func (ch *Channel) Serve(ctx context.Context, ws *websocket.Conn, userID uint) {
	c := &conn{ws: ws, userID: userID}
	defer ws.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.send(outbound{Type: MsgDashboardUpdate, Data: ch.dashboard(userID)}); err != nil {
		return
	}

	go ch.pushLoop(ctx, c)

	for {
		var cmd inbound
		if err := ws.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read user %d: %v", userID, err)
			}
			return
		}
		if err := ch.handleCommand(c, cmd.Type); err != nil {
			return
		}
	}
}

func (ch *Channel) pushLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(ch.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(outbound{Type: MsgPeriodicUpdate, Data: ch.dashboard(c.userID)}); err != nil {
				return
			}
		}
	}
}

func (ch *Channel) handleCommand(c *conn, cmd string) error {
	switch cmd {
	case CmdPing:
		return c.send(outbound{Type: MsgPong})
	case CmdRequestData:
		return c.send(outbound{Type: MsgDashboardUpdate, Data: ch.dashboard(c.userID)})
	case CmdRequestPending:
		return c.send(outbound{Type: MsgPendingUpdate, Data: ch.pending(c.userID)})
	case CmdRequestHourly:
		return c.send(outbound{Type: MsgHourlyUpdate, Data: ch.hourly(c.userID)})
	case CmdRequestCategory:
		return c.send(outbound{Type: MsgCategoryUpdate, Data: map[string]interface{}{
			"categories": btpay.Categories(),
		}})
	case CmdAutoCategorize:
		categorized := ch.BTPay.AutoCategorizeAll(c.userID)
		return c.send(outbound{Type: MsgAutoCategorize, Data: map[string]interface{}{
			"categorized": categorized,
		}})
	default:
		return c.send(outbound{Type: MsgError, Data: map[string]interface{}{
			"message": "unknown command: " + cmd,
		}})
	}
}

// dashboard builds the combined snapshot pushed on connect, on
// request_data and on every periodic tick.
func (ch *Channel) dashboard(userID uint) map[string]interface{} {
	data := map[string]interface{}{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}

	if stats, err := ch.BTPay.GetStats(userID, 30); err == nil {
		data["stats"] = stats
	} else {
		log.Printf("realtime: stats for user %d: %v", userID, err)
	}
	if count, err := ch.BTPay.PendingCount(userID); err == nil {
		data["pending_count"] = count
	}
	return data
}

func (ch *Channel) pending(userID uint) map[string]interface{} {
	items, total, err := ch.BTPay.PendingWalletPayments(userID, defaultPendingPerPush)
	if err != nil {
		log.Printf("realtime: pending for user %d: %v", userID, err)
		return map[string]interface{}{"items": []btpay.PendingItem{}, "total": "0"}
	}
	return map[string]interface{}{
		"items": items,
		"total": total.StringFixed(2),
		"count": len(items),
	}
}

func (ch *Channel) hourly(userID uint) map[string]interface{} {
	buckets, err := ch.BTPay.HourlySummary(userID)
	if err != nil {
		log.Printf("realtime: hourly for user %d: %v", userID, err)
		return map[string]interface{}{"hours": []btpay.HourBucket{}}
	}
	return map[string]interface{}{"hours": buckets}
}
