package internal

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把 WebSocket 連線的生命週期映射到遊戲語義
//   （連線 = 會話、關閉 = 斷線事件、重開 + Reconnect 消息 = 恢復）？
//
// 核心挑戰：
//   1. 心跳機制：檢測死連線（網絡異常、客戶端崩潰）
//   2. 重連路由：Reconnect 是帶外控制消息，必須在一般分派前攔截
//   3. 連線替換競態：新連線註冊後，舊連線的關閉事件不能觸發斷線流程
//   4. 異步發送：慢客戶端不能阻塞房間廣播
//
// 設計方案：
//   ✅ Ping/Pong 心跳（54s/60s，避開代理的 60s 超時閾值）
//   ✅ 信封解碼一次，Reconnect 優先路由（tagged union）
//   ✅ 關閉時比對註冊表中的當前連線，被替換的連線不觸發斷線
//   ✅ 緩衝 channel + 寫入期限，緩衝滿即丟（盡力而為）

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Hub WebSocket 接入層
//
// 負責連線升級與消息分派；遊戲語義全部轉交 Manager。
type Hub struct {
	manager  *Manager
	players  *PlayerRegistry
	sessions *SessionRegistry
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHub 創建 WebSocket 接入層
func NewHub(manager *Manager, players *PlayerRegistry, sessions *SessionRegistry, logger *slog.Logger) *Hub {
	return &Hub{
		manager:  manager,
		players:  players,
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Connection 一條 WebSocket 連線
//
// 實現 Session 介面；playerID 只在 readPump goroutine 中讀寫
// （重連攔截可能把連線改掛到舊的玩家 ID 下）。
//
// send channel 的關閉與寫入都必須持有 mu：廣播路徑從註冊表拿到
// 連線後在鎖外調用 Send，若 close 不與寫入互斥，計時器廣播撞上
// 斷線關閉會對已關閉的 channel 寫入而讓整個行程 panic。
type Connection struct {
	playerID string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub

	mu     sync.Mutex
	closed bool
}

// Send 異步發送消息（Session 介面）
//
// 緩衝區滿或連線已關閉時回傳錯誤，不阻塞呼叫方。
func (c *Connection) Send(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- message:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

// Close 關閉連線（Session 介面，冪等）
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// ServeWS 處理 WebSocket 連線
//
// GET /ws/game?playerId=xxx，未註冊的玩家在升級前拒絕。
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "缺少玩家 ID", http.StatusBadRequest)
		return
	}
	if _, err := hub.players.GetPlayer(playerID); err != nil {
		http.Error(w, "玩家不存在", http.StatusForbidden)
		return
	}

	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		playerID: playerID,
		conn:     ws,
		send:     make(chan []byte, sendBufferSize),
		hub:      hub,
	}

	hub.sessions.Register(playerID, connection)

	go connection.writePump()
	go connection.readPump()

	hub.logger.Info("WebSocket 連線建立", "player_id", playerID)
}

// readPump 讀取並分派客戶端消息
//
// 連線關閉時，只有當註冊表中的當前連線仍是自己才觸發斷線流程：
// 被重連替換掉的舊連線關閉時不能把活著的對局打成暫停。
func (c *Connection) readPump() {
	defer func() {
		if current, ok := c.hub.sessions.Lookup(c.playerID); !ok || current == c {
			c.hub.manager.PlayerDisconnected(c.playerID)
		}
		c.Close()
		c.conn.Close()
		c.hub.logger.Info("WebSocket 連線結束", "player_id", c.playerID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"player_id", c.playerID)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatch(message)
	}
}

// dispatch 解碼信封並分派
//
// 解碼失敗的消息記錄後丟棄，連線保持開啟。
func (c *Connection) dispatch(message []byte) {
	msg, err := DecodeClientMessage(message)
	if err != nil {
		c.hub.logger.Warn("解析客戶端消息失敗",
			"error", err,
			"player_id", c.playerID)
		return
	}

	// Reconnect 在一般分派之前攔截：把本連線改掛到斷線前的玩家 ID 下
	if msg.Type == TypeReconnect {
		c.handleReconnect(msg.PlayerID)
		return
	}

	switch msg.Type {
	case TypeCreateRoom:
		roomID, err := c.hub.manager.CreateRoom(c.playerID)
		if err != nil {
			c.hub.logger.Warn("創建房間失敗", "player_id", c.playerID, "error", err)
			return
		}
		c.hub.manager.Send(c.playerID, NewRoomCreatedMessage(roomID))

	case TypeJoinRoom:
		err := c.hub.manager.JoinRoom(c.playerID, msg.RoomID)
		if err != nil {
			c.hub.logger.Warn("加入房間失敗",
				"player_id", c.playerID,
				"room_id", msg.RoomID,
				"error", err)
		}
		c.hub.manager.Send(c.playerID, NewJoinedRoomMessage(msg.RoomID, err == nil))
		if err == nil {
			c.hub.manager.StartGame(msg.RoomID)
		}

	case TypePlayerAnswer:
		roomID, ok := c.hub.manager.RoomOf(c.playerID)
		if !ok {
			c.hub.logger.Debug("玩家不在任何房間中", "player_id", c.playerID)
			return
		}
		if err := c.hub.manager.SubmitAnswer(roomID, c.playerID, msg.Answer); err != nil {
			c.hub.logger.Warn("作答處理失敗",
				"player_id", c.playerID,
				"room_id", roomID,
				"error", err)
		}

	default:
		c.hub.logger.Debug("收到未知消息類型",
			"type", msg.Type,
			"player_id", c.playerID)
	}
}

// handleReconnect 處理帶外的重連消息
func (c *Connection) handleReconnect(oldPlayerID string) {
	if oldPlayerID == "" {
		c.hub.logger.Warn("重連消息缺少玩家 ID", "player_id", c.playerID)
		return
	}

	if !c.hub.manager.PlayerReconnected(oldPlayerID, c) {
		c.hub.logger.Warn("重連失敗：沒有匹配的斷線記錄",
			"player_id", oldPlayerID)
		return
	}

	// 本連線改掛到舊 ID 下，清掉升級時的臨時註冊
	if c.playerID != oldPlayerID {
		if current, ok := c.hub.sessions.Lookup(c.playerID); ok && current == c {
			c.hub.sessions.Unregister(c.playerID)
		}
		c.playerID = oldPlayerID
	}
}

// writePump 寫入消息到客戶端
//
// Ping 間隔 54 秒：避開常見代理的 60 秒超時閾值，留 6 秒余量。
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Stop 關閉所有連線
func (hub *Hub) Stop() {
	hub.sessions.CloseAll()
	hub.logger.Info("WebSocket 接入層已停止")
}

// 編譯期檢查：Connection 必須實現 Session
var _ Session = (*Connection)(nil)
