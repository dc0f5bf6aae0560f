package internal

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Player 玩家資訊
//
// 由帳號創建 API 產生，房間只引用不擁有。
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// PlayerRegistry 玩家註冊表
//
// 行程內共享的玩家索引，與房間表、會話表一樣採 per-map 鎖紀律。
type PlayerRegistry struct {
	mu      sync.RWMutex
	players map[string]*Player
}

// NewPlayerRegistry 創建玩家註冊表
func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{
		players: make(map[string]*Player),
	}
}

// CreatePlayer 創建玩家
func (r *PlayerRegistry) CreatePlayer(name, avatarURL string) (*Player, error) {
	if name == "" {
		return nil, fmt.Errorf("玩家名稱不能為空")
	}

	player := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		AvatarURL: avatarURL,
	}

	r.mu.Lock()
	r.players[player.ID] = player
	r.mu.Unlock()

	return player, nil
}

// GetPlayer 查詢玩家
func (r *PlayerRegistry) GetPlayer(id string) (*Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	player, exists := r.players[id]
	if !exists {
		return nil, fmt.Errorf("玩家不存在: %s", id)
	}
	return player, nil
}

// DeletePlayer 刪除玩家（冪等）
func (r *PlayerRegistry) DeletePlayer(id string) {
	r.mu.Lock()
	delete(r.players, id)
	r.mu.Unlock()
}

// Count 已註冊玩家數量
func (r *PlayerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
