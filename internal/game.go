package internal

import "sync"

// 系統設計問題：
//   如何讓同一套房間編排引擎支援多種小遊戲玩法？
//
// 設計方案：
//   ✅ 能力集介面（出題 / 結算答案 / 回合時長 / 所需人數）
//   ✅ 玩法實例歸屬於單一房間，在開局時選定
//   ✅ 避免深層繼承，新玩法 = 新的介面實現

// Game 一種可玩的小遊戲玩法
//
// 介面契約：
//   - NextQuestion 產生並保存新的當前題目
//   - ProcessAnswer 把一次作答結算進玩法狀態；playerID 為空（超時）
//     或答案錯誤時不改變狀態
//   - RoundTime 回傳每回合的秒數
//   - PlayerCount 回傳開局所需的玩家數
//   - CursorPosition 回傳共享比分游標（協議中的 cursorPosition 欄位）
//   - Winner 回傳勝者與對局是否終結
type Game interface {
	NextQuestion() Question
	CurrentQuestion() (Question, bool)
	ProcessAnswer(playerID, answer string)
	RoundTime() int
	PlayerCount() int
	CursorPosition() float64
	Winner() (playerID string, finished bool)
}

const (
	resistanceRoundSeconds = 10
	resistancePlayerCount  = 2
	resistanceCursorStep   = 0.1

	// 浮點累加誤差容忍，避免 0.1 步進時邊界判斷抖動
	cursorEpsilon = 1e-9
)

// ResistanceGame 拔河式搶答玩法
//
// 規則：
//   - 游標從 0.5 出發，答對一題往答題者的目標邊移動 0.1
//     （先入座的玩家往 0 推，後入座的往 1 推）
//   - 距離邊緣不足一步時直接貼邊（<=0.1 貼 0，>=0.9 貼 1）
//   - 游標到達 0 或 1 即終局
//   - 無人作答或答錯不移動游標
type ResistanceGame struct {
	mu      sync.Mutex
	source  QuestionSource
	seats   []string // 入座順序決定推進方向
	current *Question
	cursor  float64
}

// NewResistanceGame 創建拔河玩法實例
//
// seats 為按入座順序排列的玩家 ID。
func NewResistanceGame(source QuestionSource, seats []string) *ResistanceGame {
	return &ResistanceGame{
		source: source,
		seats:  append([]string(nil), seats...),
		cursor: 0.5,
	}
}

// NextQuestion 產生並保存新題目
func (g *ResistanceGame) NextQuestion() Question {
	question := g.source.NextQuestion()

	g.mu.Lock()
	g.current = &question
	g.mu.Unlock()

	return question
}

// CurrentQuestion 當前題目
func (g *ResistanceGame) CurrentQuestion() (Question, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return Question{}, false
	}
	return *g.current, true
}

// ProcessAnswer 結算一次作答
//
// playerID 為空代表回合超時無人作答，是 no-op。
func (g *ResistanceGame) ProcessAnswer(playerID, answer string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if playerID == "" || g.current == nil || answer != g.current.CorrectAnswer {
		return
	}

	seat := -1
	for i, id := range g.seats {
		if id == playerID {
			seat = i
			break
		}
	}
	if seat < 0 {
		return
	}

	step := resistanceCursorStep
	if seat == 0 {
		step = -resistanceCursorStep
	}

	next := g.cursor + step
	switch {
	case next <= resistanceCursorStep+cursorEpsilon:
		g.cursor = 0
	case next >= 1-resistanceCursorStep-cursorEpsilon:
		g.cursor = 1
	default:
		g.cursor = next
	}
}

// RoundTime 每回合秒數
func (g *ResistanceGame) RoundTime() int {
	return resistanceRoundSeconds
}

// PlayerCount 所需玩家數
func (g *ResistanceGame) PlayerCount() int {
	return resistancePlayerCount
}

// CursorPosition 當前游標位置，範圍 [0, 1]
func (g *ResistanceGame) CursorPosition() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cursor
}

// Winner 游標到達邊緣時回傳該邊玩家，否則 finished 為 false
func (g *ResistanceGame) Winner() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.cursor <= 0 && len(g.seats) > 0:
		return g.seats[0], true
	case g.cursor >= 1 && len(g.seats) > 1:
		return g.seats[1], true
	default:
		return "", false
	}
}
