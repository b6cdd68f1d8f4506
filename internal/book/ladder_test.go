package book

import (
	"math"
	"testing"

	"github.com/quotekit/autotrader/internal/exchange"
)

func update(seq int, bids, asks [][2]int) exchange.BookUpdate {
	u := exchange.BookUpdate{Instrument: exchange.ETF, Sequence: seq}
	for i, b := range bids {
		u.BidPrices[i], u.BidVolumes[i] = b[0], b[1]
	}
	for i, a := range asks {
		u.AskPrices[i], u.AskVolumes[i] = a[0], a[1]
	}
	return u
}

func TestApplyUpdateReplacesBook(t *testing.T) {
	l := NewLadder(exchange.ETF)

	if !l.ApplyUpdate(update(1, [][2]int{{10000, 5}, {9900, 3}}, [][2]int{{10100, 4}})) {
		t.Fatal("首条快照应被接受")
	}

	bid, vol, ok := l.BestBid()
	if !ok || bid != 10000 || vol != 5 {
		t.Fatalf("BestBid = (%d,%d,%v), want (10000,5,true)", bid, vol, ok)
	}
	ask, vol, ok := l.BestAsk()
	if !ok || ask != 10100 || vol != 4 {
		t.Fatalf("BestAsk = (%d,%d,%v), want (10100,4,true)", ask, vol, ok)
	}

	// 新快照整体替换：旧的 9900 档消失
	l.ApplyUpdate(update(2, [][2]int{{10000, 2}}, [][2]int{{10200, 6}}))
	if got := l.VolumeAt(exchange.Buy, 9900); got != 0 {
		t.Fatalf("旧档 9900 应被清掉, got volume %d", got)
	}
	if got := l.VolumeAt(exchange.Buy, 10000); got != 2 {
		t.Fatalf("VolumeAt(10000) = %d, want 2", got)
	}
}

func TestApplyUpdateDropsStaleSequence(t *testing.T) {
	l := NewLadder(exchange.ETF)
	l.ApplyUpdate(update(5, [][2]int{{10000, 5}}, [][2]int{{10100, 4}}))

	if l.ApplyUpdate(update(5, [][2]int{{1, 1}}, nil)) {
		t.Fatal("重复序号应被丢弃")
	}
	if l.ApplyUpdate(update(4, [][2]int{{1, 1}}, nil)) {
		t.Fatal("旧序号应被丢弃")
	}
	if bid, _, _ := l.BestBid(); bid != 10000 {
		t.Fatalf("簿不应被旧快照污染, BestBid = %d", bid)
	}
}

func TestApplyUpdateWrongInstrument(t *testing.T) {
	l := NewLadder(exchange.Future)
	if l.ApplyUpdate(update(1, [][2]int{{10000, 5}}, nil)) {
		t.Fatal("品种不符的快照应被丢弃")
	}
}

func TestApplyLevelZeroVolumeDeletes(t *testing.T) {
	l := NewLadder(exchange.ETF)
	l.ApplyLevel(exchange.Buy, 10000, 5)
	l.ApplyLevel(exchange.Buy, 10000, 0)

	if _, _, ok := l.BestBid(); ok {
		t.Fatal("数量 0 应删档")
	}
}

func TestWeightedMid(t *testing.T) {
	l := NewLadder(exchange.ETF)
	l.ApplyUpdate(update(1, [][2]int{{10000, 3}}, [][2]int{{10100, 1}}))

	// imbalance = 3/4, mid = 0.75*10100 + 0.25*10000 = 10075
	mid, ok := l.WeightedMid()
	if !ok {
		t.Fatal("双边有量时应可估")
	}
	if math.Abs(mid-10075) > 1e-9 {
		t.Fatalf("WeightedMid = %v, want 10075", mid)
	}
}

func TestWeightedMidUnavailableOneSided(t *testing.T) {
	l := NewLadder(exchange.ETF)
	l.ApplyUpdate(update(1, [][2]int{{10000, 3}}, nil))

	if _, ok := l.WeightedMid(); ok {
		t.Fatal("单边簿不应给出估计")
	}
}

func TestMidpointAndLastTraded(t *testing.T) {
	l := NewLadder(exchange.Future)
	u := update(1, [][2]int{{9900, 2}}, [][2]int{{10100, 2}})
	u.Instrument = exchange.Future
	l.ApplyUpdate(u)

	mid, ok := l.MidpointPrice()
	if !ok || mid != 10000 {
		t.Fatalf("MidpointPrice = (%d,%v), want (10000,true)", mid, ok)
	}

	l.SetLastTraded(10050)
	l.SetLastTraded(0) // 0 不应覆盖
	if got := l.LastTraded(); got != 10050 {
		t.Fatalf("LastTraded = %d, want 10050", got)
	}
}

func TestSnapshotSorted(t *testing.T) {
	l := NewLadder(exchange.ETF)
	l.ApplyUpdate(update(1,
		[][2]int{{9800, 1}, {10000, 5}, {9900, 3}},
		[][2]int{{10300, 2}, {10100, 4}, {10200, 1}}))

	s := l.Snapshot()
	if s.BidPrices[0] != 10000 || s.BidPrices[1] != 9900 || s.BidPrices[2] != 9800 {
		t.Fatalf("买档应降序: %v", s.BidPrices)
	}
	if s.AskPrices[0] != 10100 || s.AskPrices[1] != 10200 || s.AskPrices[2] != 10300 {
		t.Fatalf("卖档应升序: %v", s.AskPrices)
	}
	if s.BidVolumes[0] != 5 || s.AskVolumes[0] != 4 {
		t.Fatalf("档量不符: bid %v ask %v", s.BidVolumes, s.AskVolumes)
	}
}
