// Package account 记录成交流水并做 mark-to-market 盈亏。
//
// 纯信息用途（日志 / journal / 状态页 / 熔断阈值），不参与任何下单决策。
// 金额一律用 decimal 以分计，避免长会话里浮点累计误差。
package account

import (
	"github.com/shopspring/decimal"

	"github.com/quotekit/autotrader/internal/exchange"
)

// Account 会话账户。只被交易主循环访问。
type Account struct {
	balance decimal.Decimal // 现金余额（分）
	fees    decimal.Decimal // 累计费用（分，做市返佣为负）

	etfPosition    int
	futurePosition int
	buyVolume      int
	sellVolume     int

	pnl         decimal.Decimal
	maxProfit   decimal.Decimal
	maxDrawdown decimal.Decimal
}

func New() *Account {
	return &Account{}
}

// Transact 记一笔成交。price 为分，fee 可为负（maker 返佣）。
func (a *Account) Transact(instrument exchange.Instrument, side exchange.Side, price, volume, fee int) {
	notional := decimal.NewFromInt(int64(price) * int64(volume))
	if side == exchange.Sell {
		a.balance = a.balance.Add(notional)
	} else {
		a.balance = a.balance.Sub(notional)
	}
	a.balance = a.balance.Sub(decimal.NewFromInt(int64(fee)))
	a.fees = a.fees.Add(decimal.NewFromInt(int64(fee)))

	if instrument == exchange.Future {
		if side == exchange.Sell {
			a.futurePosition -= volume
		} else {
			a.futurePosition += volume
		}
		return
	}
	if side == exchange.Sell {
		a.sellVolume += volume
		a.etfPosition -= volume
	} else {
		a.buyVolume += volume
		a.etfPosition += volume
	}
}

// MarkToMarket 用最近成交价估值持仓，更新 PnL / 峰值 / 回撤。
// 任一价格为 0（尚无成交）时跳过该腿。
func (a *Account) MarkToMarket(futurePrice, etfPrice int) {
	pnl := a.balance
	pnl = pnl.Add(decimal.NewFromInt(int64(a.futurePosition) * int64(futurePrice)))
	pnl = pnl.Add(decimal.NewFromInt(int64(a.etfPosition) * int64(etfPrice)))
	a.pnl = pnl

	if pnl.GreaterThan(a.maxProfit) {
		a.maxProfit = pnl
	}
	if dd := a.maxProfit.Sub(pnl); dd.GreaterThan(a.maxDrawdown) {
		a.maxDrawdown = dd
	}
}

// ProfitOrLoss 最近一次 mark-to-market 的盈亏（分）。
func (a *Account) ProfitOrLoss() decimal.Decimal { return a.pnl }

// ProfitOrLossCents 整数分口径（熔断器用）。
func (a *Account) ProfitOrLossCents() int64 { return a.pnl.IntPart() }

// MaxDrawdown 峰值回撤（分）。
func (a *Account) MaxDrawdown() decimal.Decimal { return a.maxDrawdown }

// TotalFees 累计费用（分）。
func (a *Account) TotalFees() decimal.Decimal { return a.fees }

// Balance 现金余额（分）。
func (a *Account) Balance() decimal.Decimal { return a.balance }

func (a *Account) ETFPosition() int { return a.etfPosition }

func (a *Account) FuturePosition() int { return a.futurePosition }

// TradedVolume 累计买卖手数。
func (a *Account) TradedVolume() (buy, sell int) { return a.buyVolume, a.sellVolume }
