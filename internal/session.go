package internal

import (
	"log/slog"
	"sync"
)

// Session 一條可發送消息的連線句柄
//
// 傳輸層（WebSocket）實現此介面；測試注入記錄消息的假連線。
type Session interface {
	Send(message []byte) error
	Close() error
}

// SessionRegistry 會話註冊表
//
// 系統設計考量：
//
//  1. 每個玩家同時最多一條活躍連線：
//     Register 直接替換舊連線並關閉它（重連即替換，不產生重複條目）
//
//  2. 廣播為盡力而為（best-effort fan-out）：
//     單一收件者發送失敗只記錄日誌，不中斷其餘收件者，也不重試。
//     遊戲狀態會隨下一次 RoomUpdate 重新同步，丟一則消息不致命。
//
//  3. 無業務邏輯：
//     註冊表只管 playerID -> Session 的映射，斷線恢復由 Manager 負責。
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	logger   *slog.Logger
}

// NewSessionRegistry 創建會話註冊表
func NewSessionRegistry(logger *slog.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]Session),
		logger:   logger,
	}
}

// Register 註冊連線，替換並關閉同一玩家的舊連線
func (r *SessionRegistry) Register(playerID string, session Session) {
	r.mu.Lock()
	old, exists := r.sessions[playerID]
	r.sessions[playerID] = session
	r.mu.Unlock()

	if exists && old != session {
		if err := old.Close(); err != nil {
			r.logger.Debug("關閉舊連線失敗", "player_id", playerID, "error", err)
		}
	}
}

// Unregister 移除連線（冪等）
func (r *SessionRegistry) Unregister(playerID string) {
	r.mu.Lock()
	delete(r.sessions, playerID)
	r.mu.Unlock()
}

// Lookup 查詢玩家的活躍連線
func (r *SessionRegistry) Lookup(playerID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, exists := r.sessions[playerID]
	return session, exists
}

// Send 發送消息給單一玩家，無連線或發送失敗只記錄日誌
func (r *SessionRegistry) Send(playerID string, message []byte) {
	session, exists := r.Lookup(playerID)
	if !exists {
		r.logger.Debug("玩家沒有活躍連線", "player_id", playerID)
		return
	}
	if err := session.Send(message); err != nil {
		r.logger.Warn("發送消息失敗", "player_id", playerID, "error", err)
	}
}

// Broadcast 廣播消息給一組玩家（盡力而為）
func (r *SessionRegistry) Broadcast(playerIDs []string, message []byte) {
	for _, playerID := range playerIDs {
		r.Send(playerID, message)
	}
}

// Count 活躍連線數量
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll 關閉所有連線（服務器關閉時使用）
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]Session)
	r.mu.Unlock()

	for playerID, session := range sessions {
		if err := session.Close(); err != nil {
			r.logger.Debug("關閉連線失敗", "player_id", playerID, "error", err)
		}
	}
}
