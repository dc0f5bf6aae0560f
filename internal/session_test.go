package internal_test

import (
	"testing"

	"github.com/koopa0/trivia-duel/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSessionRegistry_RegisterAndLookup 測試註冊與查詢
func TestSessionRegistry_RegisterAndLookup(t *testing.T) {
	registry := internal.NewSessionRegistry(testLogger())

	session := &fakeSession{}
	registry.Register("player_001", session)

	got, exists := registry.Lookup("player_001")
	require.True(t, exists)
	assert.Same(t, internal.Session(session), got)
	assert.Equal(t, 1, registry.Count())

	_, exists = registry.Lookup("player_999")
	assert.False(t, exists)
}

// TestSessionRegistry_RegisterReplacesOld 測試重連替換舊連線
func TestSessionRegistry_RegisterReplacesOld(t *testing.T) {
	registry := internal.NewSessionRegistry(testLogger())

	old := &fakeSession{}
	registry.Register("player_001", old)

	// 新連線替換舊連線，舊連線被關閉
	replacement := &fakeSession{}
	registry.Register("player_001", replacement)

	assert.True(t, old.isClosed())
	assert.Equal(t, 1, registry.Count())

	got, exists := registry.Lookup("player_001")
	require.True(t, exists)
	assert.Same(t, internal.Session(replacement), got)
}

// TestSessionRegistry_Unregister 測試移除連線
func TestSessionRegistry_Unregister(t *testing.T) {
	registry := internal.NewSessionRegistry(testLogger())

	registry.Register("player_001", &fakeSession{})
	registry.Unregister("player_001")

	_, exists := registry.Lookup("player_001")
	assert.False(t, exists)
	assert.Equal(t, 0, registry.Count())

	// 冪等
	registry.Unregister("player_001")
}

// TestSessionRegistry_Send 測試單播
func TestSessionRegistry_Send(t *testing.T) {
	registry := internal.NewSessionRegistry(testLogger())

	session := &fakeSession{}
	registry.Register("player_001", session)

	registry.Send("player_001", []byte(`{"type":"test"}`))
	assert.Len(t, session.received(), 1)

	// 無連線的玩家：只記錄日誌，不 panic
	registry.Send("player_999", []byte(`{"type":"test"}`))

	// 發送失敗：只記錄日誌
	failing := &fakeSession{failSend: true}
	registry.Register("player_002", failing)
	registry.Send("player_002", []byte(`{"type":"test"}`))
}

// TestSessionRegistry_Broadcast 測試盡力而為的廣播
func TestSessionRegistry_Broadcast(t *testing.T) {
	registry := internal.NewSessionRegistry(testLogger())

	healthy1 := &fakeSession{}
	failing := &fakeSession{failSend: true}
	healthy2 := &fakeSession{}
	registry.Register("player_001", healthy1)
	registry.Register("player_002", failing)
	registry.Register("player_003", healthy2)

	registry.Broadcast([]string{"player_001", "player_002", "player_003"}, []byte(`{"type":"test"}`))

	// 單一收件者失敗不影響其餘收件者
	assert.Len(t, healthy1.received(), 1)
	assert.Len(t, healthy2.received(), 1)
}

// TestSessionRegistry_CloseAll 測試全部關閉
func TestSessionRegistry_CloseAll(t *testing.T) {
	registry := internal.NewSessionRegistry(testLogger())

	s1 := &fakeSession{}
	s2 := &fakeSession{}
	registry.Register("player_001", s1)
	registry.Register("player_002", s2)

	registry.CloseAll()

	assert.True(t, s1.isClosed())
	assert.True(t, s2.isClosed())
	assert.Equal(t, 0, registry.Count())
}
