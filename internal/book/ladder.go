// Package book 维护本方视角的订单簿（每品种一个 Ladder）。
//
// 行情源按序号推送每侧最优五档快照；这里把快照拆成逐档 ApplyLevel，
// 数量为 0 即删档。对交易所数据不做形状以外的校验——信任行情的排序，
// 但容忍重复/乱序快照（按序号幂等丢弃）。
package book

import (
	"sort"

	"github.com/quotekit/autotrader/internal/exchange"
)

// Ladder 单品种订单簿。只被交易主循环访问。
type Ladder struct {
	instrument exchange.Instrument
	seq        int

	bids map[int]int // price -> volume
	asks map[int]int

	lastTraded int // 最近成交价（trade ticks），0 表示还没有
}

func NewLadder(instrument exchange.Instrument) *Ladder {
	return &Ladder{
		instrument: instrument,
		bids:       make(map[int]int, exchange.TopLevels*2),
		asks:       make(map[int]int, exchange.TopLevels*2),
	}
}

func (l *Ladder) Instrument() exchange.Instrument { return l.instrument }
func (l *Ladder) Sequence() int                   { return l.seq }

// ApplyLevel 替换或插入一个价格档；volume == 0 删除该档。
// 对相同输入天然幂等。
func (l *Ladder) ApplyLevel(side exchange.Side, price, volume int) {
	if price == 0 {
		return
	}
	m := l.bids
	if side == exchange.Sell {
		m = l.asks
	}
	if volume == 0 {
		delete(m, price)
		return
	}
	m[price] = volume
}

// ApplyUpdate 应用一条带序号的五档快照。旧序号（含重复）直接丢弃并返回 false。
// 快照是权威的：每侧可见档位被整体替换。
func (l *Ladder) ApplyUpdate(u exchange.BookUpdate) bool {
	if u.Instrument != l.instrument {
		return false
	}
	if l.seq != 0 && u.Sequence <= l.seq {
		return false
	}
	l.seq = u.Sequence

	l.bids = make(map[int]int, exchange.TopLevels)
	l.asks = make(map[int]int, exchange.TopLevels)
	for i := 0; i < exchange.TopLevels; i++ {
		l.ApplyLevel(exchange.Buy, u.BidPrices[i], u.BidVolumes[i])
		l.ApplyLevel(exchange.Sell, u.AskPrices[i], u.AskVolumes[i])
	}
	return true
}

// BestBid 返回最高买价及其数量。
func (l *Ladder) BestBid() (price, volume int, ok bool) {
	for p, v := range l.bids {
		if !ok || p > price {
			price, volume, ok = p, v, true
		}
	}
	return
}

// BestAsk 返回最低卖价及其数量。
func (l *Ladder) BestAsk() (price, volume int, ok bool) {
	for p, v := range l.asks {
		if !ok || p < price {
			price, volume, ok = p, v, true
		}
	}
	return
}

// VolumeAt 指定档位的数量，档位不存在返回 0。
func (l *Ladder) VolumeAt(side exchange.Side, price int) int {
	if side == exchange.Buy {
		return l.bids[price]
	}
	return l.asks[price]
}

// WeightedMid 按最优档量不平衡加权的中间价（默认公允价估计）。
// 任一侧为空或最优档量全为 0 时不可用。
func (l *Ladder) WeightedMid() (float64, bool) {
	bidPrice, bidVol, bidOK := l.BestBid()
	askPrice, askVol, askOK := l.BestAsk()
	if !bidOK || !askOK || bidVol+askVol == 0 {
		return 0, false
	}
	imbalance := float64(bidVol) / float64(bidVol+askVol)
	return imbalance*float64(askPrice) + (1-imbalance)*float64(bidPrice), true
}

// SetLastTraded 记录最近成交价（用于 mark-to-market）。
func (l *Ladder) SetLastTraded(price int) {
	if price > 0 {
		l.lastTraded = price
	}
}

// LastTraded 最近成交价，0 表示尚无成交。
func (l *Ladder) LastTraded() int { return l.lastTraded }

// MidpointPrice 最优买卖中点（对冲腿的成交价口径）。
func (l *Ladder) MidpointPrice() (int, bool) {
	bid, _, bidOK := l.BestBid()
	ask, _, askOK := l.BestAsk()
	if !bidOK || !askOK {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Snapshot 导出每侧最优 TopLevels 档（状态页/journal 用）。
func (l *Ladder) Snapshot() exchange.BookUpdate {
	u := exchange.BookUpdate{Instrument: l.instrument, Sequence: l.seq}

	bidPrices := make([]int, 0, len(l.bids))
	for p := range l.bids {
		bidPrices = append(bidPrices, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(bidPrices)))
	for i := 0; i < len(bidPrices) && i < exchange.TopLevels; i++ {
		u.BidPrices[i] = bidPrices[i]
		u.BidVolumes[i] = l.bids[bidPrices[i]]
	}

	askPrices := make([]int, 0, len(l.asks))
	for p := range l.asks {
		askPrices = append(askPrices, p)
	}
	sort.Ints(askPrices)
	for i := 0; i < len(askPrices) && i < exchange.TopLevels; i++ {
		u.AskPrices[i] = askPrices[i]
		u.AskVolumes[i] = l.asks[askPrices[i]]
	}
	return u
}
