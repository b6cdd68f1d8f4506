package risk

import (
	"testing"
	"testing/quick"
)

var testLimits = Limits{Position: 100, OrderCount: 10, Volume: 200}

func TestWouldViolateOrderCount(t *testing.T) {
	l := NewLedger(Limits{Position: 100, OrderCount: 2, Volume: 200})
	l.ApplyOpen(Buy, 10)
	l.ApplyOpen(Sell, 10)

	if got := l.WouldViolate(Buy, 1); got != OrderCountLimit {
		t.Fatalf("WouldViolate = %v, want order_count_limit", got)
	}
}

func TestWouldViolateVolume(t *testing.T) {
	l := NewLedger(Limits{Position: 1000, OrderCount: 10, Volume: 200})
	l.ApplyOpen(Buy, 150)

	if got := l.WouldViolate(Sell, 51); got != VolumeLimit {
		t.Fatalf("WouldViolate = %v, want volume_limit", got)
	}
	if got := l.WouldViolate(Sell, 50); got != None {
		t.Fatalf("WouldViolate = %v, want none", got)
	}
}

func TestWouldViolatePositionWorstCase(t *testing.T) {
	// 持仓 +90，已有 5 手买单挂着：最坏情况全成是 +95，
	// 再挂 6 手买单就可能冲到 +101。
	l := NewLedger(testLimits)
	l.ApplyOpen(Buy, 95)
	l.ApplyFill(Buy, 90)

	if got, want := l.Position(), 90; got != want {
		t.Fatalf("Position = %d, want %d", got, want)
	}
	if got := l.WouldViolate(Buy, 6); got != PositionLimit {
		t.Fatalf("WouldViolate(buy 6) = %v, want position_limit", got)
	}
	if got := l.WouldViolate(Buy, 5); got != None {
		t.Fatalf("WouldViolate(buy 5) = %v, want none", got)
	}
	// 空头方向离限额还远
	if got := l.WouldViolate(Sell, 100); got != None {
		t.Fatalf("WouldViolate(sell 100) = %v, want none", got)
	}
}

func TestFillReleasesExposure(t *testing.T) {
	l := NewLedger(testLimits)
	l.ApplyOpen(Sell, 10)

	if got := l.ActiveVolume(); got != 10 {
		t.Fatalf("ActiveVolume = %d, want 10", got)
	}

	l.ApplyFill(Sell, 4)
	if got := l.ActiveVolume(); got != 6 {
		t.Fatalf("部分成交后 ActiveVolume = %d, want 6", got)
	}
	if got := l.Position(); got != -4 {
		t.Fatalf("Position = %d, want -4", got)
	}

	l.ApplyFill(Sell, 6)
	l.ApplyClose(Sell, 0)
	if got := l.ActiveVolume(); got != 0 {
		t.Fatalf("全部成交后 ActiveVolume = %d, want 0", got)
	}
	if got := l.LiveOrders(); got != 0 {
		t.Fatalf("LiveOrders = %d, want 0", got)
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestCancelReleasesRemaining(t *testing.T) {
	l := NewLedger(testLimits)
	l.ApplyOpen(Buy, 10)
	l.ApplyFill(Buy, 3)
	l.ApplyClose(Buy, 7)

	if got := l.ActiveVolume(); got != 0 {
		t.Fatalf("ActiveVolume = %d, want 0", got)
	}
	if got := l.Position(); got != 3 {
		t.Fatalf("Position = %d, want 3", got)
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestAmendAdjustsExposure(t *testing.T) {
	l := NewLedger(testLimits)
	l.ApplyOpen(Buy, 10)

	l.ApplyAmend(Buy, -4)
	if got := l.BuyExposure(); got != 6 {
		t.Fatalf("减量后 BuyExposure = %d, want 6", got)
	}
	l.ApplyAmend(Buy, 2)
	if got := l.ActiveVolume(); got != 8 {
		t.Fatalf("增量后 ActiveVolume = %d, want 8", got)
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestFutureFillOnlyBookkeeping(t *testing.T) {
	l := NewLedger(testLimits)
	l.ApplyFutureFill(Sell, 30)
	l.ApplyFutureFill(Buy, 10)

	if got := l.FuturePosition(); got != -20 {
		t.Fatalf("FuturePosition = %d, want -20", got)
	}
	// 期货持仓不影响 ETF 侧限额
	if got := l.WouldViolate(Buy, 100); got != None {
		t.Fatalf("WouldViolate = %v, want none", got)
	}
}

func TestLateFillAdjustsPositionOnly(t *testing.T) {
	// 订单已按全成状态回报离场（敞口释放完毕），迟到的成交回报只该动持仓
	l := NewLedger(testLimits)
	l.ApplyOpen(Buy, 10)
	l.ApplyClose(Buy, 10)

	l.ApplyLateFill(Buy, 10)
	if got := l.Position(); got != 10 {
		t.Fatalf("Position = %d, want 10", got)
	}
	if l.BuyExposure() != 0 || l.ActiveVolume() != 0 {
		t.Fatalf("敞口不该被二次释放: buy=%d av=%d", l.BuyExposure(), l.ActiveVolume())
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("不变量被破坏: %v", err)
	}
}

// 性质：只做预检放行的 Open/Fill/Close 序列，不变量永远成立。
func TestLedgerInvariantsUnderRandomFlow(t *testing.T) {
	type op struct {
		IsBuy bool
		Vol   uint8
	}

	check := func(ops []op) bool {
		l := NewLedger(testLimits)
		type live struct {
			side      Side
			remaining int
		}
		var open []live

		for _, o := range ops {
			side := Sell
			if o.IsBuy {
				side = Buy
			}
			vol := int(o.Vol%20) + 1

			if l.WouldViolate(side, vol) == None {
				l.ApplyOpen(side, vol)
				open = append(open, live{side, vol})
			} else if len(open) > 0 {
				// 挂不进就成交掉最老的一单，腾出敞口
				first := open[0]
				open = open[1:]
				l.ApplyFill(first.side, first.remaining)
				l.ApplyClose(first.side, 0)
			}

			if err := l.CheckInvariants(); err != nil {
				t.Logf("invariant: %v", err)
				return false
			}
		}
		return true
	}

	if err := quick.Check(check, &quick.Config{MaxCount: 100}); err != nil {
		t.Fatal(err)
	}
}
