package internal

import (
	"fmt"
	"sync"
	"time"
)

// 系統設計問題：
//   一場對戰的生命週期橫跨多個並發任務（計時器回調、入站消息、
//   延遲清理、斷線寬限檢查），如何保證狀態轉換不會互相踩踏？
//
// 核心挑戰：
//   1. 狀態管理：waiting → countdown → playing ⇄ 回合結算 → playing | finished
//      以及 playing → paused → playing（斷線恢復）
//   2. 回合唯一性：同一房間任一時刻最多一個活躍計時器
//   3. 結算唯一性：每回合最多結算一次（搶答 vs 超時的競態）
//   4. 延遲任務：倒數開局、下一題、終局清理互斥，銷毀時全部取消
//
// 設計方案：
//   ✅ 有限狀態機 + 房間級 Mutex（房間之間互不加鎖）
//   ✅ 回合 resolved 旗標作為結算的唯一性閘門
//   ✅ 單一 pending 延遲任務槽，新任務替換舊任務，銷毀時停止

// RoomState 房間狀態
type RoomState string

const (
	StateWaiting   RoomState = "waiting"   // 等待第二位玩家
	StateCountdown RoomState = "countdown" // 人滿，開局倒數中
	StatePlaying   RoomState = "playing"   // 回合進行中
	StatePaused    RoomState = "paused"    // 有玩家斷線，等待重連
	StateFinished  RoomState = "finished"  // 終局，等待延遲清理
)

// MaxRoomPlayers 房間人數上限（開局時由玩法的 PlayerCount 再次確認）
const MaxRoomPlayers = 2

// Round 一個問答回合
//
// 只有最後一個回合可變；Resolved 一旦置位，該回合的一切後續
// 事件（遲到的作答、殘餘的計時器到期）都是 no-op。
type Round struct {
	Number          int
	Timer           *RoundTimer
	Answer          string
	AnsweringPlayer string
	Resolved        bool
}

// Room 一場對戰
//
// Players 依入座順序排列（座位決定拔河推進方向）。
// 欄位由 Mu 保護；跨房間的索引（房間表、玩家索引）由 Manager 自己的鎖保護。
type Room struct {
	ID        string
	Players   []*Player
	Rounds    []*Round
	State     RoomState
	CreatedAt time.Time

	Mu sync.Mutex

	game       Game
	pending    *time.Timer // 當前排程的延遲任務（倒數/下一題/清理），互斥
	destroyed  bool
	lastActive time.Time
}

// NewRoom 創建房間
func NewRoom(id string) *Room {
	now := time.Now()
	return &Room{
		ID:         id,
		State:      StateWaiting,
		CreatedAt:  now,
		lastActive: now,
	}
}

// AddPlayer 入座，回傳房間是否已滿
func (r *Room) AddPlayer(player *Player) (full bool, err error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed {
		return false, fmt.Errorf("房間已關閉")
	}
	if r.State != StateWaiting {
		return false, fmt.Errorf("對戰已開始，無法加入")
	}
	if len(r.Players) >= MaxRoomPlayers {
		return false, fmt.Errorf("房間已滿")
	}
	for _, p := range r.Players {
		if p.ID == player.ID {
			return false, fmt.Errorf("玩家已在房間內")
		}
	}

	r.Players = append(r.Players, player)
	r.lastActive = time.Now()
	return len(r.Players) == MaxRoomPlayers, nil
}

// StartCountdown 進入開局倒數並綁定玩法實例
func (r *Room) StartCountdown(game Game) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed {
		return fmt.Errorf("房間已關閉")
	}
	if r.State != StateWaiting {
		return fmt.Errorf("房間狀態不允許開局: %s", r.State)
	}
	if len(r.Players) != game.PlayerCount() {
		return fmt.Errorf("需要 %d 位玩家，目前 %d 位", game.PlayerCount(), len(r.Players))
	}

	r.game = game
	r.State = StateCountdown
	r.lastActive = time.Now()
	return nil
}

// BeginPlaying 倒數結束，進入對戰
//
// 倒數期間房間被銷毀或暫停時回傳 false。
func (r *Room) BeginPlaying() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed || r.State != StateCountdown {
		return false
	}
	r.State = StatePlaying
	r.lastActive = time.Now()
	return true
}

// Pause 玩家斷線，暫停對戰
//
// 取消活躍的回合計時器與排程中的延遲任務。只有倒數中或
// 對戰中的房間需要暫停；其他狀態回傳 false（等待中的房間
// 沒有可暫停的回合）。
func (r *Room) Pause() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed {
		return false
	}

	r.cancelCurrentTimerLocked()
	r.stopPendingLocked()

	if r.State != StatePlaying && r.State != StateCountdown {
		return false
	}
	r.State = StatePaused
	r.lastActive = time.Now()
	return true
}

// Resume 玩家重連，恢復對戰
func (r *Room) Resume() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed || r.State != StatePaused {
		return false
	}
	r.State = StatePlaying
	r.lastActive = time.Now()
	return true
}

// Finish 游標到達邊緣，終局
func (r *Room) Finish() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed || r.State != StatePlaying {
		return false
	}
	r.State = StateFinished
	r.lastActive = time.Now()
	return true
}

// NewRound 開始新回合，回傳回合編號；房間不在對戰中時回傳 0
//
// 防護性地取消上一回合殘餘的計時器：正常流程中它已被結算路徑
// 取消，這裡兜底保證「每房間最多一個活躍計時器」的不變量。
func (r *Room) NewRound() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed || r.State != StatePlaying {
		return 0
	}

	r.cancelCurrentTimerLocked()

	number := len(r.Rounds) + 1
	r.Rounds = append(r.Rounds, &Round{Number: number})
	r.lastActive = time.Now()
	return number
}

// AttachTimer 把計時器綁定到指定回合
//
// 回傳 false 代表房間狀態已經改變（銷毀/暫停/回合已結算），
// 呼叫方必須取消該計時器。
func (r *Room) AttachTimer(number int, timer *RoundTimer) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed || r.State != StatePlaying {
		return false
	}
	round := r.currentRoundLocked()
	if round == nil || round.Number != number || round.Resolved {
		return false
	}
	round.Timer = timer
	return true
}

// RecordAnswer 記錄當前回合的作答
//
// 同一回合只接受第一筆作答；回合已結算或已有作答時回傳 false
// （race-lost，上層視為 no-op）。
func (r *Room) RecordAnswer(playerID, answer string) (number int, accepted bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed || r.State != StatePlaying {
		return 0, false
	}
	member := false
	for _, p := range r.Players {
		if p.ID == playerID {
			member = true
			break
		}
	}
	if !member {
		return 0, false
	}
	round := r.currentRoundLocked()
	if round == nil || round.Resolved || round.AnsweringPlayer != "" {
		return 0, false
	}

	round.Answer = answer
	round.AnsweringPlayer = playerID
	r.lastActive = time.Now()
	return round.Number, true
}

// ResolveRound 結算指定回合（每回合至多成功一次）
//
// 搶答路徑與超時路徑都經過這裡；先到者取消計時器並拿走結算權，
// 後到者拿到 false 後不做任何事。回傳該回合記錄的作答內容。
func (r *Room) ResolveRound(number int) (answeredPlayer, answer string, ok bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed || r.State != StatePlaying {
		return "", "", false
	}
	round := r.currentRoundLocked()
	if round == nil || round.Number != number || round.Resolved {
		return "", "", false
	}

	round.Resolved = true
	if round.Timer != nil {
		round.Timer.Cancel()
		round.Timer = nil
	}
	r.lastActive = time.Now()
	return round.AnsweringPlayer, round.Answer, true
}

// Schedule 排程一個延遲任務，替換掉尚未執行的舊任務
func (r *Room) Schedule(d time.Duration, f func()) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed {
		return
	}
	r.stopPendingLocked()
	r.pending = time.AfterFunc(d, f)
}

// Close 銷毀房間（冪等），取消一切計時器與延遲任務
func (r *Room) Close() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed {
		return false
	}
	r.destroyed = true
	r.cancelCurrentTimerLocked()
	r.stopPendingLocked()
	return true
}

// ActiveGame 綁定的玩法實例（開局前為 nil）
func (r *Room) ActiveGame() Game {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.game
}

// StateNow 當前狀態
func (r *Room) StateNow() RoomState {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.State
}

// CursorPosition 當前游標位置，未開局時為中點
func (r *Room) CursorPosition() float64 {
	r.Mu.Lock()
	game := r.game
	r.Mu.Unlock()

	if game == nil {
		return 0.5
	}
	return game.CursorPosition()
}

// PlayerIDs 玩家 ID 快照（按入座順序）
func (r *Room) PlayerIDs() []string {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// PlayerSnapshot 玩家列表快照
func (r *Room) PlayerSnapshot() []*Player {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return append([]*Player(nil), r.Players...)
}

// FindPlayer 查詢房間內玩家
func (r *Room) FindPlayer(playerID string) (*Player, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	for _, p := range r.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

// CurrentRoundNumber 當前回合編號，尚未開局為 0
func (r *Room) CurrentRoundNumber() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	round := r.currentRoundLocked()
	if round == nil {
		return 0
	}
	return round.Number
}

// HasLiveTimer 當前回合是否有活躍計時器（不變量檢查用）
func (r *Room) HasLiveTimer() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	round := r.currentRoundLocked()
	return round != nil && !round.Resolved && round.Timer != nil
}

// IsExpired 房間是否閒置過期（定期清掃用）
//
// 事件驅動的清理（終局、棄局、寬限到期）負責正常路徑，
// 清掃只兜底長期無人加入的等待房間。
func (r *Room) IsExpired(idleLimit time.Duration) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.destroyed {
		return true
	}
	return r.State == StateWaiting && time.Since(r.lastActive) > idleLimit
}

func (r *Room) currentRoundLocked() *Round {
	if len(r.Rounds) == 0 {
		return nil
	}
	return r.Rounds[len(r.Rounds)-1]
}

func (r *Room) cancelCurrentTimerLocked() {
	if round := r.currentRoundLocked(); round != nil && round.Timer != nil {
		round.Timer.Cancel()
		round.Timer = nil
	}
}

func (r *Room) stopPendingLocked() {
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}
