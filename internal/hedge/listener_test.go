package hedge

import (
	"testing"
	"time"

	"github.com/quotekit/autotrader/internal/exchange"
	"github.com/quotekit/autotrader/internal/risk"
)

func newFixture() (*Listener, *risk.Ledger) {
	ledger := risk.NewLedger(risk.Limits{Position: 100, OrderCount: 10, Volume: 200})
	return NewListener(ledger, 5*time.Second), ledger
}

func TestETFFillOpensOppositeRecord(t *testing.T) {
	l, _ := newFixture()
	now := time.Unix(100, 0)

	// 卖出 10 手 ETF，期望交易所买入 10 手期货
	l.OnETFFill(exchange.Sell, 10000, 10, now)

	if got := l.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}
	if got := l.PendingVolume(); got != 10 {
		t.Fatalf("PendingVolume = %d, want 10", got)
	}
}

func TestFutureFillMatchesRecord(t *testing.T) {
	l, ledger := newFixture()
	now := time.Unix(100, 0)

	l.OnETFFill(exchange.Sell, 10000, 10, now)
	l.OnFutureFill(exchange.Buy, 10050, 10, now.Add(10*time.Millisecond))

	if got := l.PendingVolume(); got != 0 {
		t.Fatalf("冲销后 PendingVolume = %d, want 0", got)
	}
	if got := l.MatchedVolume(); got != 10 {
		t.Fatalf("MatchedVolume = %d, want 10", got)
	}
	if got := ledger.FuturePosition(); got != 10 {
		t.Fatalf("FuturePosition = %d, want 10", got)
	}

	// 窗口内无超时告警
	l.Expire(now.Add(time.Second))
	if got := l.LateCount(); got != 0 {
		t.Fatalf("LateCount = %d, want 0", got)
	}
}

func TestPartialFutureFillSplitsRecord(t *testing.T) {
	l, _ := newFixture()
	now := time.Unix(100, 0)

	l.OnETFFill(exchange.Buy, 10000, 10, now)
	l.OnFutureFill(exchange.Sell, 9950, 4, now)

	if got := l.PendingVolume(); got != 6 {
		t.Fatalf("部分冲销后 PendingVolume = %d, want 6", got)
	}

	l.OnFutureFill(exchange.Sell, 9950, 6, now)
	if got := l.PendingVolume(); got != 0 {
		t.Fatalf("PendingVolume = %d, want 0", got)
	}
}

func TestFutureFillConsumesFIFO(t *testing.T) {
	l, _ := newFixture()
	now := time.Unix(100, 0)

	l.OnETFFill(exchange.Sell, 10000, 3, now)
	l.OnETFFill(exchange.Sell, 10010, 5, now.Add(time.Millisecond))
	// 跨两条记录的期货成交
	l.OnFutureFill(exchange.Buy, 10050, 6, now.Add(2*time.Millisecond))

	if got := l.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}
	if got := l.PendingVolume(); got != 2 {
		t.Fatalf("PendingVolume = %d, want 2", got)
	}
}

func TestFutureFillWrongSideNotConsumed(t *testing.T) {
	l, _ := newFixture()
	now := time.Unix(100, 0)

	l.OnETFFill(exchange.Sell, 10000, 10, now) // 期望期货买入
	l.OnFutureFill(exchange.Sell, 9950, 10, now)

	if got := l.PendingVolume(); got != 10 {
		t.Fatalf("方向不符不应冲销: PendingVolume = %d", got)
	}
}

func TestExpireFlagsOverdueRecords(t *testing.T) {
	l, _ := newFixture()
	now := time.Unix(100, 0)

	l.OnETFFill(exchange.Sell, 10000, 10, now)
	l.OnETFFill(exchange.Buy, 10020, 5, now.Add(3*time.Second))

	l.Expire(now.Add(6 * time.Second))

	if got := l.LateCount(); got != 1 {
		t.Fatalf("LateCount = %d, want 1", got)
	}
	// 第二条还在窗口内
	if got := l.PendingVolume(); got != 5 {
		t.Fatalf("PendingVolume = %d, want 5", got)
	}
}
