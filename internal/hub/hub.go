// Package hub 通过 WebSocket 把同步引擎暴露给前端:
// 推送每次状态转换的 View 与通知，并把客户端动作分发给 StateManager。
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"idle-miner-sync/internal/models"
	"idle-miner-sync/internal/statemanager"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // 必须小于 pongWait
)

// Actions 是 hub 能触发的玩家动作，由 *statemanager.StateManager 实现
type Actions interface {
	Mine(ctx context.Context) (statemanager.Outcome, error)
	SellOre(ctx context.Context, kind string) (statemanager.Sale, error)
	SellAll(ctx context.Context) (statemanager.Sale, error)
	Save(ctx context.Context) (models.SyncResult, error)
	View() statemanager.View
}

// inbound 客户端消息 {"type":"mine"|"sell"|"sell_all"|"save","kind":...}
type inbound struct {
	Type string `json:"type"`
	Kind string `json:"kind,omitempty"`
}

// outbound 服务端推送的消息
type outbound struct {
	Type   string               `json:"type"` // view | notice | result | error
	Action string               `json:"action,omitempty"`
	View   *statemanager.View   `json:"view,omitempty"`
	Notice *statemanager.Notice `json:"notice,omitempty"`
	Reward *models.Reward       `json:"reward,omitempty"`
	Sold   map[string]int64     `json:"sold,omitempty"`
	Coins  int64                `json:"coins,omitempty"`
	Synced *bool                `json:"synced,omitempty"`
	Error  string               `json:"error,omitempty"`
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub 同时实现 statemanager.Presenter 与 statemanager.Notifier
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	actions Actions
	clients map[*client]struct{}
}

// New 创建 Hub。actions 可以稍后通过 Bind 设置，以解决与 StateManager 的循环依赖。
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Bind 设置动作的接收者
func (h *Hub) Bind(actions Actions) {
	h.mu.Lock()
	h.actions = actions
	h.mu.Unlock()
}

// Present 广播最新的 View
func (h *Hub) Present(v statemanager.View) {
	h.broadcast(outbound{Type: "view", View: &v})
}

// Notify 广播终态通知
func (h *Hub) Notify(n statemanager.Notice) {
	h.broadcast(outbound{Type: "notice", Notice: &n})
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP 升级连接并为其运行读循环，直到连接断开
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Sugar().Warnf("WebSocket升级失败: %v", err)
		return
	}
	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	actions := h.actions
	h.mu.Unlock()
	h.logger.Sugar().Debugf("客户端已连接: %s", r.RemoteAddr)

	defer h.remove(c)

	// 新连接先收到当前状态
	if actions != nil {
		v := actions.View()
		if err := c.writeJSON(outbound{Type: "view", View: &v}); err != nil {
			return
		}
	}

	// 动作与连接解耦: 连接断开时正在进行的持久化仍然完成
	ctx := context.WithoutCancel(r.Context())
	h.readLoop(ctx, c)
}

// readLoop 读取客户端消息并实现心跳
func (h *Hub) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingStop := make(chan struct{})
	defer close(pingStop)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			case <-pingStop:
				return
			}
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Sugar().Warnf("读取消息失败: %v", err)
			}
			return
		}

		// 回复写失败说明连接已不可用，退出读循环并移除客户端
		if err := c.writeJSON(h.handle(ctx, data)); err != nil {
			h.logger.Sugar().Debugf("回复客户端失败: %v", err)
			return
		}
	}
}

// handle 解析一条客户端消息并生成回复，无法解析时回复错误
func (h *Hub) handle(ctx context.Context, data []byte) outbound {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return outbound{Type: "error", Error: "invalid message"}
	}
	return h.dispatch(ctx, msg)
}

// dispatch 执行一个客户端动作并生成回复
func (h *Hub) dispatch(ctx context.Context, msg inbound) outbound {
	h.mu.RLock()
	actions := h.actions
	h.mu.RUnlock()
	if actions == nil {
		return outbound{Type: "error", Action: msg.Type, Error: models.ErrNoSession.Error()}
	}

	reply := outbound{Type: "result", Action: msg.Type}
	var err error
	switch msg.Type {
	case "mine":
		var out statemanager.Outcome
		out, err = actions.Mine(ctx)
		reply.Reward = out.Reward
		if out.Sync != nil {
			synced := out.Sync.Succeeded
			reply.Synced = &synced
		}
	case "sell", "sell_all":
		var sale statemanager.Sale
		if msg.Type == "sell" {
			sale, err = actions.SellOre(ctx, msg.Kind)
		} else {
			sale, err = actions.SellAll(ctx)
		}
		reply.Sold = sale.Sold
		reply.Coins = sale.Coins
		synced := sale.Sync.Succeeded
		reply.Synced = &synced
	case "save":
		var result models.SyncResult
		result, err = actions.Save(ctx)
		synced := result.Succeeded
		reply.Synced = &synced
	default:
		err = errors.New("unknown message type")
	}

	if err != nil {
		return outbound{Type: "error", Action: msg.Type, Error: err.Error()}
	}
	return reply
}

func (h *Hub) broadcast(msg outbound) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(msg); err != nil {
			h.logger.Sugar().Debugf("推送失败，断开客户端: %v", err)
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Close 断开所有客户端
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.conn.Close()
	}
}
