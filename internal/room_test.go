package internal_test

import (
	"testing"
	"time"

	"github.com/koopa0/trivia-duel/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlayer(id, name string) *internal.Player {
	return &internal.Player{ID: id, Name: name}
}

// playingRoom 建一個已有兩位玩家並進入對戰狀態的房間
func playingRoom(t *testing.T) *internal.Room {
	t.Helper()

	room := internal.NewRoom("room_001")
	_, err := room.AddPlayer(testPlayer("player_001", "玩家一"))
	require.NoError(t, err)
	full, err := room.AddPlayer(testPlayer("player_002", "玩家二"))
	require.NoError(t, err)
	require.True(t, full)

	game := internal.NewResistanceGame(fixedSource{question: testQuestion()}, room.PlayerIDs())
	require.NoError(t, room.StartCountdown(game))
	require.True(t, room.BeginPlaying())

	return room
}

// TestNewRoom 測試創建新房間
func TestNewRoom(t *testing.T) {
	room := internal.NewRoom("room_001")

	require.NotNil(t, room)
	assert.Equal(t, "room_001", room.ID)
	assert.Equal(t, internal.StateWaiting, room.StateNow())
	assert.Empty(t, room.PlayerIDs())
	assert.Equal(t, 0, room.CurrentRoundNumber())
	assert.Nil(t, room.ActiveGame())
	assert.InDelta(t, 0.5, room.CursorPosition(), 1e-9)
}

// TestRoom_AddPlayer 測試入座
func TestRoom_AddPlayer(t *testing.T) {
	tests := []struct {
		name          string
		setupRoom     func() *internal.Room
		player        *internal.Player
		expectedFull  bool
		expectedError string
	}{
		{
			name: "first player",
			setupRoom: func() *internal.Room {
				return internal.NewRoom("room_001")
			},
			player:       testPlayer("player_001", "玩家一"),
			expectedFull: false,
		},
		{
			name: "second player fills room",
			setupRoom: func() *internal.Room {
				room := internal.NewRoom("room_002")
				room.AddPlayer(testPlayer("player_001", "玩家一"))
				return room
			},
			player:       testPlayer("player_002", "玩家二"),
			expectedFull: true,
		},
		{
			name: "duplicate player",
			setupRoom: func() *internal.Room {
				room := internal.NewRoom("room_003")
				room.AddPlayer(testPlayer("player_001", "玩家一"))
				return room
			},
			player:        testPlayer("player_001", "玩家一"),
			expectedError: "玩家已在房間內",
		},
		{
			name: "room full",
			setupRoom: func() *internal.Room {
				room := internal.NewRoom("room_004")
				room.AddPlayer(testPlayer("player_001", "玩家一"))
				room.AddPlayer(testPlayer("player_002", "玩家二"))
				return room
			},
			player:        testPlayer("player_003", "玩家三"),
			expectedError: "房間已滿",
		},
		{
			name: "closed room",
			setupRoom: func() *internal.Room {
				room := internal.NewRoom("room_005")
				room.Close()
				return room
			},
			player:        testPlayer("player_001", "玩家一"),
			expectedError: "房間已關閉",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := tt.setupRoom()
			full, err := room.AddPlayer(tt.player)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedFull, full)
		})
	}
}

// TestRoom_StateTransitions 測試狀態機
func TestRoom_StateTransitions(t *testing.T) {
	t.Run("complete match flow", func(t *testing.T) {
		room := internal.NewRoom("room_001")
		room.AddPlayer(testPlayer("player_001", "玩家一"))
		room.AddPlayer(testPlayer("player_002", "玩家二"))

		game := internal.NewResistanceGame(fixedSource{question: testQuestion()}, room.PlayerIDs())

		// waiting → countdown
		require.NoError(t, room.StartCountdown(game))
		assert.Equal(t, internal.StateCountdown, room.StateNow())
		assert.Same(t, internal.Game(game), room.ActiveGame())

		// countdown → playing
		assert.True(t, room.BeginPlaying())
		assert.Equal(t, internal.StatePlaying, room.StateNow())

		// 回合編號嚴格遞增
		assert.Equal(t, 1, room.NewRound())
		assert.Equal(t, 2, room.NewRound())

		// playing → finished
		assert.True(t, room.Finish())
		assert.Equal(t, internal.StateFinished, room.StateNow())
	})

	t.Run("countdown requires full room", func(t *testing.T) {
		room := internal.NewRoom("room_002")
		room.AddPlayer(testPlayer("player_001", "玩家一"))

		game := internal.NewResistanceGame(fixedSource{question: testQuestion()}, room.PlayerIDs())
		err := room.StartCountdown(game)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "需要 2 位玩家")
	})

	t.Run("begin playing only from countdown", func(t *testing.T) {
		room := internal.NewRoom("room_003")
		assert.False(t, room.BeginPlaying())
	})

	t.Run("pause and resume", func(t *testing.T) {
		room := playingRoom(t)
		room.NewRound()

		// playing → paused
		assert.True(t, room.Pause())
		assert.Equal(t, internal.StatePaused, room.StateNow())

		// 暫停中不開新回合
		assert.Equal(t, 0, room.NewRound())

		// paused → playing
		assert.True(t, room.Resume())
		assert.Equal(t, internal.StatePlaying, room.StateNow())
		assert.Equal(t, 2, room.NewRound())
	})

	t.Run("pause during countdown", func(t *testing.T) {
		room := internal.NewRoom("room_004")
		room.AddPlayer(testPlayer("player_001", "玩家一"))
		room.AddPlayer(testPlayer("player_002", "玩家二"))

		game := internal.NewResistanceGame(fixedSource{question: testQuestion()}, room.PlayerIDs())
		require.NoError(t, room.StartCountdown(game))

		assert.True(t, room.Pause())
		assert.Equal(t, internal.StatePaused, room.StateNow())
	})

	t.Run("pause has nothing to stop while waiting", func(t *testing.T) {
		room := internal.NewRoom("room_005")
		assert.False(t, room.Pause())
		assert.Equal(t, internal.StateWaiting, room.StateNow())
	})

	t.Run("resume only from paused", func(t *testing.T) {
		room := playingRoom(t)
		assert.False(t, room.Resume())
	})

	t.Run("finish only while playing", func(t *testing.T) {
		room := internal.NewRoom("room_006")
		assert.False(t, room.Finish())
	})
}

// TestRoom_RecordAndResolve 測試回合作答與結算閘門
func TestRoom_RecordAndResolve(t *testing.T) {
	t.Run("first answer wins the round", func(t *testing.T) {
		room := playingRoom(t)
		number := room.NewRound()

		got, accepted := room.RecordAnswer("player_001", "tr")
		require.True(t, accepted)
		assert.Equal(t, number, got)

		// 同一回合的第二筆作答被拒絕
		_, accepted = room.RecordAnswer("player_002", "de")
		assert.False(t, accepted)
	})

	t.Run("non-member rejected", func(t *testing.T) {
		room := playingRoom(t)
		room.NewRound()

		_, accepted := room.RecordAnswer("stranger", "tr")
		assert.False(t, accepted)
	})

	t.Run("resolve at most once", func(t *testing.T) {
		room := playingRoom(t)
		number := room.NewRound()
		room.RecordAnswer("player_001", "tr")

		player, answer, ok := room.ResolveRound(number)
		require.True(t, ok)
		assert.Equal(t, "player_001", player)
		assert.Equal(t, "tr", answer)

		// 第二次結算（超時路徑遲到）拿不到結算權
		_, _, ok = room.ResolveRound(number)
		assert.False(t, ok)

		// 已結算的回合不再接受作答
		_, accepted := room.RecordAnswer("player_002", "de")
		assert.False(t, accepted)
	})

	t.Run("resolve without answer reports timeout", func(t *testing.T) {
		room := playingRoom(t)
		number := room.NewRound()

		player, answer, ok := room.ResolveRound(number)
		require.True(t, ok)
		assert.Empty(t, player)
		assert.Empty(t, answer)
	})

	t.Run("resolve stale round number", func(t *testing.T) {
		room := playingRoom(t)
		room.NewRound()
		current := room.NewRound()

		_, _, ok := room.ResolveRound(current - 1)
		assert.False(t, ok)
	})

	t.Run("no round open", func(t *testing.T) {
		room := playingRoom(t)

		_, accepted := room.RecordAnswer("player_001", "tr")
		assert.False(t, accepted)
		_, _, ok := room.ResolveRound(1)
		assert.False(t, ok)
	})
}

// TestRoom_Timers 測試計時器綁定與唯一性
func TestRoom_Timers(t *testing.T) {
	t.Run("attach timer to current round", func(t *testing.T) {
		room := playingRoom(t)
		number := room.NewRound()

		timer := internal.StartRoundTimer(600, time.Second, func(int) {}, func() {})
		require.True(t, room.AttachTimer(number, timer))
		assert.True(t, room.HasLiveTimer())

		// 結算取消計時器
		_, _, ok := room.ResolveRound(number)
		require.True(t, ok)
		assert.False(t, room.HasLiveTimer())
	})

	t.Run("attach rejected after pause", func(t *testing.T) {
		room := playingRoom(t)
		number := room.NewRound()
		room.Pause()

		timer := internal.StartRoundTimer(600, time.Second, func(int) {}, func() {})
		assert.False(t, room.AttachTimer(number, timer))
		timer.Cancel()
	})

	t.Run("attach rejected for stale round", func(t *testing.T) {
		room := playingRoom(t)
		stale := room.NewRound()
		room.NewRound()

		timer := internal.StartRoundTimer(600, time.Second, func(int) {}, func() {})
		assert.False(t, room.AttachTimer(stale, timer))
		timer.Cancel()
	})

	t.Run("new round cancels leftover timer", func(t *testing.T) {
		room := playingRoom(t)
		number := room.NewRound()

		timer := internal.StartRoundTimer(600, time.Second, func(int) {}, func() {})
		require.True(t, room.AttachTimer(number, timer))

		room.NewRound()
		assert.False(t, room.HasLiveTimer())
	})
}

// TestRoom_Schedule 測試延遲任務槽
func TestRoom_Schedule(t *testing.T) {
	t.Run("new task replaces pending one", func(t *testing.T) {
		room := internal.NewRoom("room_001")

		firstRan := make(chan struct{})
		secondRan := make(chan struct{})

		room.Schedule(20*time.Millisecond, func() { close(firstRan) })
		room.Schedule(20*time.Millisecond, func() { close(secondRan) })

		select {
		case <-secondRan:
		case <-time.After(time.Second):
			t.Fatal("第二個任務沒有執行")
		}

		select {
		case <-firstRan:
			t.Fatal("被替換的任務不應執行")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("close stops pending task", func(t *testing.T) {
		room := internal.NewRoom("room_002")

		ran := make(chan struct{})
		room.Schedule(20*time.Millisecond, func() { close(ran) })
		room.Close()

		select {
		case <-ran:
			t.Fatal("關閉後任務不應執行")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("schedule after close is no-op", func(t *testing.T) {
		room := internal.NewRoom("room_003")
		room.Close()

		ran := make(chan struct{})
		room.Schedule(10*time.Millisecond, func() { close(ran) })

		select {
		case <-ran:
			t.Fatal("已關閉的房間不應排程任務")
		case <-time.After(50 * time.Millisecond):
		}
	})
}

// TestRoom_Close 測試銷毀
func TestRoom_Close(t *testing.T) {
	room := playingRoom(t)
	number := room.NewRound()
	timer := internal.StartRoundTimer(600, time.Second, func(int) {}, func() {})
	require.True(t, room.AttachTimer(number, timer))

	// 第一次關閉成功並取消計時器
	assert.True(t, room.Close())
	assert.False(t, room.HasLiveTimer())

	// 冪等
	assert.False(t, room.Close())

	// 關閉後一切操作都是 no-op
	assert.Equal(t, 0, room.NewRound())
	assert.False(t, room.Pause())
	assert.False(t, room.Resume())
	assert.False(t, room.Finish())
	_, _, ok := room.ResolveRound(number)
	assert.False(t, ok)
}

// TestRoom_IsExpired 測試閒置過期判斷
func TestRoom_IsExpired(t *testing.T) {
	t.Run("new room not expired", func(t *testing.T) {
		room := internal.NewRoom("room_001")
		assert.False(t, room.IsExpired(time.Hour))
	})

	t.Run("idle waiting room expires", func(t *testing.T) {
		room := internal.NewRoom("room_002")
		time.Sleep(5 * time.Millisecond)
		assert.True(t, room.IsExpired(time.Millisecond))
	})

	t.Run("playing room never idle-expires", func(t *testing.T) {
		room := playingRoom(t)
		time.Sleep(5 * time.Millisecond)
		assert.False(t, room.IsExpired(time.Millisecond))
	})

	t.Run("closed room always expired", func(t *testing.T) {
		room := internal.NewRoom("room_003")
		room.Close()
		assert.True(t, room.IsExpired(time.Hour))
	})
}

// TestRoom_Snapshots 測試快照方法
func TestRoom_Snapshots(t *testing.T) {
	room := internal.NewRoom("room_001")
	room.AddPlayer(testPlayer("player_001", "玩家一"))
	room.AddPlayer(testPlayer("player_002", "玩家二"))

	// 入座順序保持穩定
	assert.Equal(t, []string{"player_001", "player_002"}, room.PlayerIDs())

	players := room.PlayerSnapshot()
	require.Len(t, players, 2)
	assert.Equal(t, "玩家一", players[0].Name)

	player, found := room.FindPlayer("player_002")
	require.True(t, found)
	assert.Equal(t, "玩家二", player.Name)

	_, found = room.FindPlayer("stranger")
	assert.False(t, found)
}
