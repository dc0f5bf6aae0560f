package internal_test

import (
	"testing"

	"github.com/koopa0/trivia-duel/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame() *internal.ResistanceGame {
	return internal.NewResistanceGame(
		fixedSource{question: testQuestion()},
		[]string{"player_001", "player_002"},
	)
}

// TestResistanceGame_Basics 測試玩法的基本屬性
func TestResistanceGame_Basics(t *testing.T) {
	game := newTestGame()

	assert.Equal(t, 10, game.RoundTime())
	assert.Equal(t, 2, game.PlayerCount())
	assert.InDelta(t, 0.5, game.CursorPosition(), 1e-9)

	// 尚未出題
	_, ok := game.CurrentQuestion()
	assert.False(t, ok)
	_, finished := game.Winner()
	assert.False(t, finished)

	// 出題後可取得當前題目
	question := game.NextQuestion()
	current, ok := game.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, question, current)
}

// TestResistanceGame_ProcessAnswer 測試作答結算
func TestResistanceGame_ProcessAnswer(t *testing.T) {
	tests := []struct {
		name           string
		playerID       string
		answer         string
		expectedCursor float64
	}{
		{
			name:           "first seat correct answer pushes toward zero",
			playerID:       "player_001",
			answer:         "tr",
			expectedCursor: 0.4,
		},
		{
			name:           "second seat correct answer pushes toward one",
			playerID:       "player_002",
			answer:         "tr",
			expectedCursor: 0.6,
		},
		{
			name:           "wrong answer does not move cursor",
			playerID:       "player_001",
			answer:         "de",
			expectedCursor: 0.5,
		},
		{
			name:           "timeout (empty player) does not move cursor",
			playerID:       "",
			answer:         "",
			expectedCursor: 0.5,
		},
		{
			name:           "unknown player does not move cursor",
			playerID:       "stranger",
			answer:         "tr",
			expectedCursor: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := newTestGame()
			game.NextQuestion()

			game.ProcessAnswer(tt.playerID, tt.answer)
			assert.InDelta(t, tt.expectedCursor, game.CursorPosition(), 1e-9)
		})
	}
}

// TestResistanceGame_AnswerBeforeQuestion 測試未出題時作答
func TestResistanceGame_AnswerBeforeQuestion(t *testing.T) {
	game := newTestGame()

	game.ProcessAnswer("player_001", "tr")
	assert.InDelta(t, 0.5, game.CursorPosition(), 1e-9)
}

// TestResistanceGame_EdgeSnapping 測試邊緣貼齊與勝負判定
func TestResistanceGame_EdgeSnapping(t *testing.T) {
	t.Run("first seat wins at zero", func(t *testing.T) {
		game := newTestGame()

		// 0.5 → 0.4 → 0.3 → 0.2 → 貼 0
		for i := 0; i < 4; i++ {
			game.NextQuestion()
			game.ProcessAnswer("player_001", "tr")
		}

		assert.Equal(t, 0.0, game.CursorPosition())
		winner, finished := game.Winner()
		require.True(t, finished)
		assert.Equal(t, "player_001", winner)
	})

	t.Run("second seat wins at one", func(t *testing.T) {
		game := newTestGame()

		// 0.5 → 0.6 → 0.7 → 0.8 → 貼 1
		for i := 0; i < 4; i++ {
			game.NextQuestion()
			game.ProcessAnswer("player_002", "tr")
		}

		assert.Equal(t, 1.0, game.CursorPosition())
		winner, finished := game.Winner()
		require.True(t, finished)
		assert.Equal(t, "player_002", winner)
	})

	t.Run("snap happens exactly one step from the edge", func(t *testing.T) {
		game := newTestGame()

		// 推到 0.2：還差兩步，不算貼邊
		for i := 0; i < 3; i++ {
			game.NextQuestion()
			game.ProcessAnswer("player_001", "tr")
		}
		assert.InDelta(t, 0.2, game.CursorPosition(), 1e-9)
		_, finished := game.Winner()
		assert.False(t, finished)

		// 再一步：0.1 在貼邊範圍內，直接到 0
		game.NextQuestion()
		game.ProcessAnswer("player_001", "tr")
		assert.Equal(t, 0.0, game.CursorPosition())
	})
}

// TestResistanceGame_TugOfWar 測試雙方拉鋸
func TestResistanceGame_TugOfWar(t *testing.T) {
	game := newTestGame()

	// 交替答對，游標在中點附近震盪，不分勝負
	for i := 0; i < 6; i++ {
		game.NextQuestion()
		if i%2 == 0 {
			game.ProcessAnswer("player_001", "tr")
		} else {
			game.ProcessAnswer("player_002", "tr")
		}
	}

	assert.InDelta(t, 0.5, game.CursorPosition(), 1e-9)
	_, finished := game.Winner()
	assert.False(t, finished)
}
