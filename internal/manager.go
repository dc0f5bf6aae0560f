package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 系統設計問題：
//   如何編排多個房間各自獨立的回合節奏、斷線恢復與資源清理，
//   而不讓任何一個房間的等待阻塞其他房間？
//
// 核心挑戰：
//   1. 並發模型：每個計時器、每個延遲任務一個 goroutine，
//      共同讀寫行程級的房間表 / 玩家索引 / 斷線記錄
//   2. 結算競態：搶答與超時同時嘗試結算同一回合
//   3. 斷線恢復：斷線與重連可能對同一玩家近乎同時發生
//   4. 清理路徑：終局、棄局、寬限到期、服務器關閉都要正確釋放資源
//
// 設計方案：
//   ✅ Manager 級 RWMutex 保護跨房間索引，房間內部自己加鎖
//   ✅ 結算唯一性由 Room.ResolveRound 閘門保證
//   ✅ 所有固定延遲收斂到 Timings，測試注入毫秒級節奏
//   ✅ 顯式取消，絕不依賴 GC 回收被遺棄的任務

// Timings 編排引擎的全部固定節奏
//
// 生產環境使用 DefaultTimings；測試注入毫秒級數值讓
// 完整對戰流程在幾十毫秒內走完。
type Timings struct {
	Countdown      time.Duration // 人滿後的開局倒數
	TickInterval   time.Duration // 回合計時器 tick 間隔（每 tick 代表一「秒」）
	NextRoundDelay time.Duration // 回合結算到下一題的間隔
	CleanupDelay   time.Duration // 終局廣播到銷毀房間的間隔
	GracePeriod    time.Duration // 斷線重連寬限期
	SweepInterval  time.Duration // 閒置房間清掃間隔
	IdleLimit      time.Duration // 等待中房間的閒置上限
}

// DefaultTimings 生產環境節奏
func DefaultTimings() Timings {
	return Timings{
		Countdown:      3 * time.Second,
		TickInterval:   time.Second,
		NextRoundDelay: 3 * time.Second,
		CleanupDelay:   5 * time.Second,
		GracePeriod:    30 * time.Second,
		SweepInterval:  time.Minute,
		IdleLimit:      30 * time.Minute,
	}
}

// DisconnectRecord 斷線中的玩家
//
// 斷線時創建，重連或寬限到期（房間銷毀）時刪除。
type DisconnectRecord struct {
	PlayerID       string
	PlayerName     string
	RoomID         string
	DisconnectedAt time.Time

	graceTask *time.Timer
}

// ActiveRoom 房間列表的只讀快照項
type ActiveRoom struct {
	ID          string    `json:"id"`
	PlayerCount int       `json:"playerCount"`
	State       RoomState `json:"state"`
	Players     []string  `json:"players"` // 玩家名稱
}

// Manager 房間編排引擎
//
// 所有入站事件（創建/加入/作答/斷線/重連）由傳輸層分派到這裡；
// Manager 驅動玩法實例、啟停回合計時器，並透過會話註冊表廣播
// 出站協議消息。
type Manager struct {
	players   *PlayerRegistry
	sessions  *SessionRegistry
	questions QuestionSource
	timings   Timings
	logger    *slog.Logger

	mu           sync.RWMutex
	rooms        map[string]*Room             // roomID -> Room
	playerToRoom map[string]string            // playerID -> roomID（函數關係，一人一房）
	disconnected map[string]*DisconnectRecord // playerID -> 斷線記錄

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager 創建編排引擎並啟動閒置房間清掃
func NewManager(players *PlayerRegistry, sessions *SessionRegistry, questions QuestionSource, timings Timings, logger *slog.Logger) *Manager {
	m := &Manager{
		players:      players,
		sessions:     sessions,
		questions:    questions,
		timings:      timings,
		logger:       logger,
		rooms:        make(map[string]*Room),
		playerToRoom: make(map[string]string),
		disconnected: make(map[string]*DisconnectRecord),
		stopCh:       make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepLoop()

	return m
}

// CreateRoom 創建房間，創建者自動入座
func (m *Manager) CreateRoom(playerID string) (string, error) {
	player, err := m.players.GetPlayer(playerID)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if roomID, exists := m.playerToRoom[playerID]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("玩家已在房間 %s 中", roomID)
	}

	room := NewRoom(uuid.NewString())
	if _, err := room.AddPlayer(player); err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.rooms[room.ID] = room
	m.playerToRoom[playerID] = room.ID
	m.mu.Unlock()

	m.logger.Info("房間已創建",
		"room_id", room.ID,
		"player_id", playerID)

	return room.ID, nil
}

// JoinRoom 加入房間
//
// 房間不存在、已滿或對戰已開始時回傳錯誤。
//
// 成員檢查、入座與索引寫入必須在同一把寫鎖下完成（與 CreateRoom
// 相同的紀律）：否則同一玩家的兩個並發加入都會通過檢查，被寫進
// 兩個房間，破壞一人一房的索引不變量。
func (m *Manager) JoinRoom(playerID, roomID string) error {
	player, err := m.players.GetPlayer(playerID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if existing, exists := m.playerToRoom[playerID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("玩家已在房間 %s 中", existing)
	}
	room, exists := m.rooms[roomID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("房間不存在: %s", roomID)
	}
	if _, err := room.AddPlayer(player); err != nil {
		m.mu.Unlock()
		return err
	}
	m.playerToRoom[playerID] = roomID
	m.mu.Unlock()

	m.logger.Info("玩家加入房間",
		"room_id", roomID,
		"player_id", playerID,
		"player_name", player.Name)

	m.broadcastRoomState(room)
	return nil
}

// StartGame 驅動 waiting → countdown → playing 的開局序列
//
// 人數不足或房間狀態不對時為 no-op。倒數只會被房間銷毀打斷。
func (m *Manager) StartGame(roomID string) {
	room, err := m.GetRoom(roomID)
	if err != nil {
		m.logger.Debug("開局失敗", "room_id", roomID, "error", err)
		return
	}

	game := NewResistanceGame(m.questions, room.PlayerIDs())
	if err := room.StartCountdown(game); err != nil {
		m.logger.Debug("開局失敗", "room_id", roomID, "error", err)
		return
	}

	m.logger.Info("開局倒數開始", "room_id", roomID)
	m.broadcastRoomState(room)

	room.Schedule(m.timings.Countdown, func() {
		if !room.BeginPlaying() {
			return
		}
		m.logger.Info("對戰開始", "room_id", roomID)
		m.nextQuestion(room)
	})
}

// SubmitAnswer 處理玩家作答
//
// 參考玩法規則：回合開放期間的第一筆作答立即結算該回合並取消
// 計時器；回合已結算後遲到的作答是 no-op，不回傳錯誤給玩家。
func (m *Manager) SubmitAnswer(roomID, playerID, answer string) error {
	room, err := m.GetRoom(roomID)
	if err != nil {
		return err
	}
	game := room.ActiveGame()
	if game == nil {
		return fmt.Errorf("對戰尚未開始")
	}

	number, accepted := room.RecordAnswer(playerID, answer)
	if !accepted {
		// 回合已結算或已有人搶答（race-lost），靜默忽略
		return nil
	}

	question, ok := game.CurrentQuestion()
	if !ok {
		return nil
	}
	correct := answer == question.CorrectAnswer
	m.broadcastToRoom(room, NewAnswerResultMessage(playerID, answer, correct))

	m.logger.Info("玩家作答",
		"room_id", roomID,
		"player_id", playerID,
		"round", number,
		"correct", correct)

	if answeredPlayer, recorded, ok := room.ResolveRound(number); ok {
		m.finishRound(room, answeredPlayer, recorded)
	}
	return nil
}

// nextQuestion 發出新題目並啟動該回合的計時器
func (m *Manager) nextQuestion(room *Room) {
	game := room.ActiveGame()
	if game == nil {
		return
	}

	question := game.NextQuestion()

	number := room.NewRound()
	if number == 0 {
		// 房間已被暫停或銷毀，不發出過時的對戰快照
		return
	}

	update := NewRoomUpdateMessage(room.PlayerSnapshot(), room.StateNow(), game.CursorPosition())
	update.TimeRemaining = game.RoundTime()
	update.CurrentQuestion = question.ClientView()
	m.broadcastToRoom(room, update)

	timer := StartRoundTimer(game.RoundTime(), m.timings.TickInterval,
		func(remaining int) {
			m.broadcastToRoom(room, NewTimeUpdateMessage(remaining))
		},
		func() {
			if answeredPlayer, answer, ok := room.ResolveRound(number); ok {
				m.finishRound(room, answeredPlayer, answer)
			}
		})

	if !room.AttachTimer(number, timer) {
		timer.Cancel()
		return
	}

	m.logger.Debug("回合開始",
		"room_id", room.ID,
		"round", number,
		"question", question.FlagID)
}

// finishRound 回合結算（搶答與超時兩條路徑在此匯合）
//
// 呼叫方必須已通過 ResolveRound 閘門，保證每回合只進來一次。
func (m *Manager) finishRound(room *Room, answeredPlayer, answer string) {
	game := room.ActiveGame()
	if game == nil {
		return
	}
	question, ok := game.CurrentQuestion()
	if !ok {
		return
	}

	// 公布正確答案
	m.broadcastToRoom(room, NewTimeUpMessage(question.CorrectAnswer))

	// 結算進玩法狀態（超時無人作答時 answeredPlayer 為空，no-op）
	game.ProcessAnswer(answeredPlayer, answer)

	if winnerID, finished := game.Winner(); finished {
		if !room.Finish() {
			return
		}
		m.logger.Info("對戰結束",
			"room_id", room.ID,
			"winner", winnerID)
		m.broadcastToRoom(room, NewGameOverMessage(winnerID))

		room.Schedule(m.timings.CleanupDelay, func() {
			m.destroyRoom(room, "game finished")
		})
		return
	}

	room.Schedule(m.timings.NextRoundDelay, func() {
		m.nextQuestion(room)
	})
}

// PlayerDisconnected 玩家斷線
//
// 找到玩家所在的房間後：記錄斷線、通知對手、暫停對戰並取消
// 計時器，再排程一次性的寬限檢查。無房間的玩家只移除會話。
func (m *Manager) PlayerDisconnected(playerID string) {
	m.mu.RLock()
	roomID, inRoom := m.playerToRoom[playerID]
	room := m.rooms[roomID]
	m.mu.RUnlock()

	m.sessions.Unregister(playerID)

	if !inRoom || room == nil {
		return
	}
	player, found := room.FindPlayer(playerID)
	if !found {
		return
	}

	record := &DisconnectRecord{
		PlayerID:       playerID,
		PlayerName:     player.Name,
		RoomID:         roomID,
		DisconnectedAt: time.Now(),
	}
	record.graceTask = time.AfterFunc(m.timings.GracePeriod, func() {
		m.graceExpired(playerID)
	})

	m.mu.Lock()
	if _, exists := m.disconnected[playerID]; exists {
		// 重複的斷線事件（連線替換過程中的舊連線關閉）
		m.mu.Unlock()
		record.graceTask.Stop()
		return
	}
	m.disconnected[playerID] = record
	m.mu.Unlock()

	m.broadcastToOthers(room, playerID, NewPlayerDisconnectedMessage(playerID, player.Name))

	paused := room.Pause()
	m.logger.Info("玩家斷線",
		"room_id", roomID,
		"player_id", playerID,
		"paused", paused,
		"grace_period", m.timings.GracePeriod)
}

// graceExpired 寬限到期檢查
//
// 斷線記錄還在（沒有重連）就銷毀房間，否則 no-op。
func (m *Manager) graceExpired(playerID string) {
	m.mu.Lock()
	record, exists := m.disconnected[playerID]
	if !exists {
		m.mu.Unlock()
		return
	}
	room := m.rooms[record.RoomID]
	m.mu.Unlock()

	if room == nil {
		m.mu.Lock()
		delete(m.disconnected, playerID)
		m.mu.Unlock()
		return
	}

	m.logger.Info("玩家未在寬限期內重連，銷毀房間",
		"room_id", record.RoomID,
		"player_id", playerID)
	m.destroyRoom(room, "player disconnected for too long")
}

// PlayerReconnected 玩家重連
//
// 只有存在斷線記錄（仍在寬限期內）才會成功；成功時重新註冊
// 連線、通知對手，暫停中的房間以全新回合恢復對戰。
func (m *Manager) PlayerReconnected(playerID string, session Session) bool {
	m.mu.Lock()
	record, exists := m.disconnected[playerID]
	if !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.disconnected, playerID)
	record.graceTask.Stop()
	room := m.rooms[record.RoomID]
	if room != nil {
		m.playerToRoom[playerID] = record.RoomID
	}
	m.mu.Unlock()

	if room == nil {
		return false
	}

	m.sessions.Register(playerID, session)

	m.logger.Info("玩家重連成功",
		"room_id", record.RoomID,
		"player_id", playerID)

	m.broadcastToOthers(room, playerID, NewPlayerReconnectedMessage(record.PlayerName))
	m.broadcastRoomState(room)

	if room.Resume() {
		m.nextQuestion(room)
	}
	return true
}

// destroyRoom 銷毀房間並釋放所有關聯資源
func (m *Manager) destroyRoom(room *Room, reason string) {
	if !room.Close() {
		return
	}

	m.broadcastToRoom(room, NewRoomClosedMessage(reason))

	playerIDs := room.PlayerIDs()

	m.mu.Lock()
	delete(m.rooms, room.ID)
	for _, playerID := range playerIDs {
		delete(m.playerToRoom, playerID)
		if record, exists := m.disconnected[playerID]; exists {
			record.graceTask.Stop()
			delete(m.disconnected, playerID)
		}
	}
	m.mu.Unlock()

	for _, playerID := range playerIDs {
		m.sessions.Unregister(playerID)
	}

	m.logger.Info("房間已銷毀", "room_id", room.ID, "reason", reason)
}

// GetRoom 查詢房間
func (m *Manager) GetRoom(roomID string) (*Room, error) {
	m.mu.RLock()
	room, exists := m.rooms[roomID]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("房間不存在: %s", roomID)
	}
	return room, nil
}

// RoomOf 查詢玩家所在的房間
func (m *Manager) RoomOf(playerID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roomID, exists := m.playerToRoom[playerID]
	return roomID, exists
}

// IsDisconnected 玩家是否有未到期的斷線記錄
func (m *Manager) IsDisconnected(playerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.disconnected[playerID]
	return exists
}

// GetActiveRooms 活躍房間的只讀快照（發現/列表用）
func (m *Manager) GetActiveRooms() []ActiveRoom {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	result := make([]ActiveRoom, 0, len(rooms))
	for _, room := range rooms {
		players := room.PlayerSnapshot()
		names := make([]string, 0, len(players))
		for _, p := range players {
			names = append(names, p.Name)
		}
		result = append(result, ActiveRoom{
			ID:          room.ID,
			PlayerCount: len(players),
			State:       room.StateNow(),
			Players:     names,
		})
	}
	return result
}

// Stats 統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	byState := make(map[RoomState]int)
	totalRooms := len(m.rooms)
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	disconnectedCount := len(m.disconnected)
	m.mu.RUnlock()

	for _, room := range rooms {
		byState[room.StateNow()]++
	}

	return map[string]any{
		"total_rooms":          totalRooms,
		"by_state":             byState,
		"registered_players":   m.players.Count(),
		"active_sessions":      m.sessions.Count(),
		"disconnected_players": disconnectedCount,
	}
}

// sweepLoop 定期清掃閒置房間
func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.timings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

// Sweep 執行一次清掃（公開方法供測試使用）
func (m *Manager) Sweep() {
	m.sweep()
}

func (m *Manager) sweep() {
	m.mu.RLock()
	var expired []*Room
	for _, room := range m.rooms {
		if room.IsExpired(m.timings.IdleLimit) {
			expired = append(expired, room)
		}
	}
	m.mu.RUnlock()

	for _, room := range expired {
		m.destroyRoom(room, "timeout")
		m.logger.Info("閒置房間已清掃", "room_id", room.ID)
	}
}

// Stop 停止編排引擎，銷毀所有房間
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()

	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	for _, room := range rooms {
		m.destroyRoom(room, "server_shutdown")
	}

	m.logger.Info("房間編排引擎已停止")
}

// broadcastRoomState 廣播房間狀態快照
func (m *Manager) broadcastRoomState(room *Room) {
	update := NewRoomUpdateMessage(room.PlayerSnapshot(), room.StateNow(), room.CursorPosition())
	if game := room.ActiveGame(); game != nil {
		if question, ok := game.CurrentQuestion(); ok {
			update.CurrentQuestion = question.ClientView()
		}
	}
	m.broadcastToRoom(room, update)
}

// broadcastToRoom 廣播消息給房間內所有玩家
func (m *Manager) broadcastToRoom(room *Room, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Error("序列化消息失敗", "room_id", room.ID, "error", err)
		return
	}
	m.sessions.Broadcast(room.PlayerIDs(), data)
}

// broadcastToOthers 廣播消息給除指定玩家外的其他玩家
func (m *Manager) broadcastToOthers(room *Room, exceptID string, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Error("序列化消息失敗", "room_id", room.ID, "error", err)
		return
	}

	var others []string
	for _, id := range room.PlayerIDs() {
		if id != exceptID {
			others = append(others, id)
		}
	}
	m.sessions.Broadcast(others, data)
}

// Send 發送消息給單一玩家
func (m *Manager) Send(playerID string, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Error("序列化消息失敗", "player_id", playerID, "error", err)
		return
	}
	m.sessions.Send(playerID, data)
}
