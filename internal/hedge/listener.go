// Package hedge 核对交易所的自动对冲回报。
//
// 规则约定：每笔 ETF 成交都由交易所即时在期货上以中点价反向对冲，
// 代理自己不下对冲单。这里只做核对记账：ETF 成交开一条待核记录，
// 对应期货成交到达即冲销；超过预期窗口仍未冲销，按异常告警——
// 告警不改变任何控制流（缺腿是外部异常，不是代理能修的事）。
package hedge

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quotekit/autotrader/internal/exchange"
	"github.com/quotekit/autotrader/internal/risk"
)

var log = logrus.WithField("component", "hedge")

// Record 待核对冲记录。
type Record struct {
	WantSide exchange.Side // 期望的期货方向（与 ETF 成交相反）
	Volume   int           // 尚未冲销的量
	EtfPrice int           // 触发的 ETF 成交价（日志用）
	OpenedAt time.Time
}

// Listener 对冲核对器。只被交易主循环访问。
type Listener struct {
	ledger *risk.Ledger
	window time.Duration // 预期冲销窗口（超过即告警）

	pending []Record // FIFO

	matched   int // 已冲销总量（lots）
	lateCount int // 超窗告警次数
	orphanVol int // 无记录可冲的期货成交量
}

func NewListener(ledger *risk.Ledger, window time.Duration) *Listener {
	return &Listener{ledger: ledger, window: window}
}

// OnETFFill ETF 成交：登记一条待核记录，期望等量反向的期货成交。
func (l *Listener) OnETFFill(side exchange.Side, price, volume int, now time.Time) {
	l.pending = append(l.pending, Record{
		WantSide: side.Opposite(),
		Volume:   volume,
		EtfPrice: price,
		OpenedAt: now,
	})
}

// OnFutureFill 期货成交：按 FIFO 冲销同方向待核记录，并记入期货持仓。
// 部分成交允许拆记录；多出来没有记录可冲的量计为 orphan 并告警。
func (l *Listener) OnFutureFill(side exchange.Side, price, volume int, now time.Time) {
	l.ledger.ApplyFutureFill(riskSide(side), volume)

	left := volume
	kept := l.pending[:0]
	for _, rec := range l.pending {
		if left == 0 || rec.WantSide != side {
			kept = append(kept, rec)
			continue
		}
		consumed := rec.Volume
		if consumed > left {
			consumed = left
		}
		left -= consumed
		l.matched += consumed
		rec.Volume -= consumed
		if rec.Volume > 0 {
			kept = append(kept, rec)
		}
	}
	l.pending = kept

	if left > 0 {
		l.orphanVol += left
		log.WithFields(logrus.Fields{
			"side":   side,
			"price":  price,
			"volume": left,
		}).Warn("future fill without matching hedge record")
	}
}

// Expire 淘汰超窗记录。按约定对冲是即时的，超窗意味着外部异常：
// 告警后关闭记录，避免积压。
func (l *Listener) Expire(now time.Time) {
	kept := l.pending[:0]
	for _, rec := range l.pending {
		if now.Sub(rec.OpenedAt) <= l.window {
			kept = append(kept, rec)
			continue
		}
		l.lateCount++
		log.WithFields(logrus.Fields{
			"want_side": rec.WantSide,
			"volume":    rec.Volume,
			"age":       now.Sub(rec.OpenedAt),
		}).Warn("hedge confirmation overdue")
	}
	l.pending = kept
}

// PendingVolume 尚未冲销的总量。
func (l *Listener) PendingVolume() int {
	total := 0
	for _, rec := range l.pending {
		total += rec.Volume
	}
	return total
}

// PendingCount 待核记录条数。
func (l *Listener) PendingCount() int { return len(l.pending) }

// MatchedVolume 已冲销总量。
func (l *Listener) MatchedVolume() int { return l.matched }

// LateCount 超窗告警次数。
func (l *Listener) LateCount() int { return l.lateCount }

func riskSide(s exchange.Side) risk.Side {
	if s == exchange.Buy {
		return risk.Buy
	}
	return risk.Sell
}
