package internal

import (
	"sync"
	"time"
)

// 系統設計問題：
//   每個房間每回合一個倒數計時器，作答路徑會從另一個 goroutine 取消它，
//   如何保證取消之後不再有任何 tick 或到期回調？
//
// 設計方案：
//   ✅ 每回合一個全新計時器，不復用（狀態簡單，無重置競態）
//   ✅ close(channel) + sync.Once 實現冪等取消
//   ✅ 每次 tick 與到期回調前都先觀察取消信號（協作式取消）

// RoundTimer 單一回合的可取消倒數計時器
//
// 由 Manager 為每個回合創建；同一房間開新計時器前必須先取消舊的，
// 否則會出現重複的回合結算（由回合的 resolved 旗標二次防護）。
type RoundTimer struct {
	cancelCh chan struct{}
	once     sync.Once
}

// StartRoundTimer 啟動倒數
//
// seconds 為回合總秒數，interval 為 tick 間隔（生產環境 1 秒，
// 測試注入毫秒級間隔以加速）。每個 tick 以剩餘秒數回調 onTick，
// 自然走完全程時恰好回調一次 onExpire。
func StartRoundTimer(seconds int, interval time.Duration, onTick func(remaining int), onExpire func()) *RoundTimer {
	t := &RoundTimer{
		cancelCh: make(chan struct{}),
	}
	go t.run(seconds, interval, onTick, onExpire)
	return t
}

// Cancel 取消計時器（冪等）
//
// 取消後不再有任何 tick，到期回調也保證不會觸發。
func (t *RoundTimer) Cancel() {
	t.once.Do(func() {
		close(t.cancelCh)
	})
}

func (t *RoundTimer) run(seconds int, interval time.Duration, onTick func(remaining int), onExpire func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for remaining := seconds - 1; remaining >= 1; remaining-- {
		select {
		case <-t.cancelCh:
			return
		case <-ticker.C:
			onTick(remaining)
		}
	}

	// 最後一秒
	select {
	case <-t.cancelCh:
		return
	case <-ticker.C:
	}

	// tick 與取消同時到達時優先觀察取消
	select {
	case <-t.cancelCh:
		return
	default:
		onExpire()
	}
}
