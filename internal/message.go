package internal

import "encoding/json"

// 系統設計問題：
//   客戶端與服務器之間如何用單一 WebSocket 通道傳遞多種語義的消息？
//
// 設計方案：
//   ✅ Tagged Union - 所有消息帶 "type" 判別欄位，傳輸層解碼一次後分派
//   ✅ Reconnect 消息在一般分派之前攔截（帶外控制消息）
//   ✅ 題目的客戶端投影不包含正確答案（防作弊）

// 客戶端消息類型
const (
	TypeCreateRoom   = "CreateRoom"
	TypeJoinRoom     = "JoinRoom"
	TypePlayerAnswer = "PlayerAnswer"
	TypeReconnect    = "Reconnect"
)

// 服務器消息類型
const (
	TypeRoomCreated        = "RoomCreated"
	TypeJoinedRoom         = "JoinedRoom"
	TypeRoomUpdate         = "RoomUpdate"
	TypeTimeUpdate         = "TimeUpdate"
	TypeTimeUp             = "TimeUp"
	TypeAnswerResult       = "AnswerResult"
	TypeGameOver           = "GameOver"
	TypePlayerDisconnected = "PlayerDisconnected"
	TypePlayerReconnected  = "PlayerReconnected"
	TypeRoomClosed         = "RoomClosed"
)

// ClientMessage 客戶端消息信封
//
// 所有入站消息共用一個信封結構，以 Type 欄位判別語義。
// 未用到的欄位保持零值，解碼失敗的消息由傳輸層記錄後丟棄。
type ClientMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId,omitempty"`
	Answer   string `json:"answer,omitempty"`
	PlayerID string `json:"playerId,omitempty"` // 僅 Reconnect 使用（舊的玩家 ID）
}

// DecodeClientMessage 解碼客戶端消息
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}

// RoomCreatedMessage 房間創建成功
type RoomCreatedMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// NewRoomCreatedMessage 創建 RoomCreated 消息
func NewRoomCreatedMessage(roomID string) RoomCreatedMessage {
	return RoomCreatedMessage{Type: TypeRoomCreated, RoomID: roomID}
}

// JoinedRoomMessage 加入房間結果
type JoinedRoomMessage struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Success bool   `json:"success"`
}

// NewJoinedRoomMessage 創建 JoinedRoom 消息
func NewJoinedRoomMessage(roomID string, success bool) JoinedRoomMessage {
	return JoinedRoomMessage{Type: TypeJoinedRoom, RoomID: roomID, Success: success}
}

// RoomUpdateMessage 房間狀態快照
//
// TimeRemaining 與 CurrentQuestion 為可選欄位：
// 等待中的房間沒有題目，暫停中的房間沒有倒數。
type RoomUpdateMessage struct {
	Type            string          `json:"type"`
	Players         []*Player       `json:"players"`
	State           RoomState       `json:"state"`
	CursorPosition  float64         `json:"cursorPosition"`
	TimeRemaining   int             `json:"timeRemaining,omitempty"`
	CurrentQuestion *ClientQuestion `json:"currentQuestion,omitempty"`
}

// NewRoomUpdateMessage 創建 RoomUpdate 消息
func NewRoomUpdateMessage(players []*Player, state RoomState, cursor float64) RoomUpdateMessage {
	return RoomUpdateMessage{
		Type:           TypeRoomUpdate,
		Players:        players,
		State:          state,
		CursorPosition: cursor,
	}
}

// TimeUpdateMessage 回合剩餘時間
type TimeUpdateMessage struct {
	Type      string `json:"type"`
	Remaining int    `json:"remaining"`
}

// NewTimeUpdateMessage 創建 TimeUpdate 消息
func NewTimeUpdateMessage(remaining int) TimeUpdateMessage {
	return TimeUpdateMessage{Type: TypeTimeUpdate, Remaining: remaining}
}

// TimeUpMessage 回合結束，公布正確答案
type TimeUpMessage struct {
	Type          string `json:"type"`
	CorrectAnswer string `json:"correctAnswer"`
}

// NewTimeUpMessage 創建 TimeUp 消息
func NewTimeUpMessage(correctAnswer string) TimeUpMessage {
	return TimeUpMessage{Type: TypeTimeUp, CorrectAnswer: correctAnswer}
}

// AnswerResultMessage 作答結果
type AnswerResultMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Answer   string `json:"answer"`
	Correct  bool   `json:"correct"`
}

// NewAnswerResultMessage 創建 AnswerResult 消息
func NewAnswerResultMessage(playerID, answer string, correct bool) AnswerResultMessage {
	return AnswerResultMessage{Type: TypeAnswerResult, PlayerID: playerID, Answer: answer, Correct: correct}
}

// GameOverMessage 遊戲結束
type GameOverMessage struct {
	Type           string `json:"type"`
	WinnerPlayerID string `json:"winnerPlayerId"`
}

// NewGameOverMessage 創建 GameOver 消息
func NewGameOverMessage(winnerPlayerID string) GameOverMessage {
	return GameOverMessage{Type: TypeGameOver, WinnerPlayerID: winnerPlayerID}
}

// PlayerDisconnectedMessage 玩家斷線通知
type PlayerDisconnectedMessage struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// NewPlayerDisconnectedMessage 創建 PlayerDisconnected 消息
func NewPlayerDisconnectedMessage(playerID, playerName string) PlayerDisconnectedMessage {
	return PlayerDisconnectedMessage{Type: TypePlayerDisconnected, PlayerID: playerID, PlayerName: playerName}
}

// PlayerReconnectedMessage 玩家重連通知
type PlayerReconnectedMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName"`
}

// NewPlayerReconnectedMessage 創建 PlayerReconnected 消息
func NewPlayerReconnectedMessage(playerName string) PlayerReconnectedMessage {
	return PlayerReconnectedMessage{Type: TypePlayerReconnected, PlayerName: playerName}
}

// RoomClosedMessage 房間關閉通知
type RoomClosedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// NewRoomClosedMessage 創建 RoomClosed 消息
func NewRoomClosedMessage(reason string) RoomClosedMessage {
	return RoomClosedMessage{Type: TypeRoomClosed, Reason: reason}
}
