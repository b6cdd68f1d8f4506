package account

import (
	"testing"

	"github.com/quotekit/autotrader/internal/exchange"
)

func TestTransactRoundTrip(t *testing.T) {
	a := New()

	// 10000 分买 10 手，10100 分卖 10 手，无费用：赚 1000 分
	a.Transact(exchange.ETF, exchange.Buy, 10000, 10, 0)
	a.Transact(exchange.ETF, exchange.Sell, 10100, 10, 0)

	if got := a.Balance().IntPart(); got != 1000 {
		t.Fatalf("Balance = %d, want 1000", got)
	}
	if got := a.ETFPosition(); got != 0 {
		t.Fatalf("ETFPosition = %d, want 0", got)
	}
	buy, sell := a.TradedVolume()
	if buy != 10 || sell != 10 {
		t.Fatalf("TradedVolume = (%d,%d), want (10,10)", buy, sell)
	}
}

func TestTransactFees(t *testing.T) {
	a := New()

	a.Transact(exchange.ETF, exchange.Buy, 10000, 10, 50)
	a.Transact(exchange.ETF, exchange.Sell, 10000, 10, -20) // maker 返佣

	if got := a.TotalFees().IntPart(); got != 30 {
		t.Fatalf("TotalFees = %d, want 30", got)
	}
	if got := a.Balance().IntPart(); got != -30 {
		t.Fatalf("Balance = %d, want -30", got)
	}
}

func TestMarkToMarketWithHedge(t *testing.T) {
	a := New()

	// 卖 10 手 ETF @10100，交易所在期货 @10000 反向对冲
	a.Transact(exchange.ETF, exchange.Sell, 10100, 10, 0)
	a.Transact(exchange.Future, exchange.Buy, 10000, 10, 0)

	if got := a.ETFPosition(); got != -10 {
		t.Fatalf("ETFPosition = %d, want -10", got)
	}
	if got := a.FuturePosition(); got != 10 {
		t.Fatalf("FuturePosition = %d, want 10", got)
	}

	// 两腿同价估值时，锁住的就是 100 分/手的价差
	a.MarkToMarket(10000, 10000)
	if got := a.ProfitOrLossCents(); got != 1000 {
		t.Fatalf("PnL = %d, want 1000", got)
	}

	// 价格平移对冲住的持仓不改变 PnL
	a.MarkToMarket(10500, 10500)
	if got := a.ProfitOrLossCents(); got != 1000 {
		t.Fatalf("对冲后价格平移 PnL = %d, want 1000", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	a := New()

	a.Transact(exchange.ETF, exchange.Buy, 10000, 10, 0)
	a.MarkToMarket(0, 10200) // +2000
	a.MarkToMarket(0, 9900)  // -1000，回撤 3000

	if got := a.MaxDrawdown().IntPart(); got != 3000 {
		t.Fatalf("MaxDrawdown = %d, want 3000", got)
	}
}
