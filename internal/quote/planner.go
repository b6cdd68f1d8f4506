// Package quote 把公允价估计转成两侧期望报价。
//
// 纯函数：同样的 (fairPrice, book, riskView) 输入永远给出同样的输出，
// 没有时钟、没有随机数。时间相关的事情（频率预算、重试）全在 reconcile 层。
package quote

import (
	"github.com/quotekit/autotrader/internal/book"
	"github.com/quotekit/autotrader/internal/risk"
)

// Quote 单侧期望报价。
type Quote struct {
	Price int // cents，已对齐 tick
	Size  int // lots
}

// Desired 两侧期望报价。nil 表示该侧整体不报（而不是报 0 量）。
type Desired struct {
	Bid *Quote
	Ask *Quote
}

// Estimator 公允价估计器。可插拔：默认用簿内加权中间价，
// 替换成微观价格模型不需要动引擎。
type Estimator interface {
	// FairPrice 返回公允价估计；行情不足以估计时 ok=false，当周期不报价。
	FairPrice(etf, future *book.Ladder) (price float64, ok bool)
}

// WeightedMid 是默认估计器：ETF 簿最优档量不平衡加权中间价。
type WeightedMid struct{}

func (WeightedMid) FairPrice(etf, _ *book.Ladder) (float64, bool) {
	return etf.WeightedMid()
}

// Params 报价参数（来自配置，会话期内不可变）。
type Params struct {
	HalfSpreadCents int // 公允价两侧各让出的半价差
	SkewPerLotCents int // 每 lot 持仓把报价中点推离重仓侧的幅度
	QuoteSize       int // 目标单侧报价量
	TickSize        int // 价格最小变动单位
}

// Planner 报价计划器。
type Planner struct {
	params Params
}

func NewPlanner(params Params) *Planner {
	return &Planner{params: params}
}

// Plan 计算期望报价。
//
// 尺寸钳制按最坏情况：本侧挂单全部成交也不能越过持仓限额，
// 两侧合计新增挂量不能越过活跃量限额。view 的敞口字段已剔除
// 当前报价单自身（见 risk.View），否则换价时会把旧单算成双份。
func (p *Planner) Plan(fairPrice float64, view risk.View) Desired {
	halfSpread := p.params.HalfSpreadCents
	if halfSpread < p.params.TickSize {
		halfSpread = p.params.TickSize
	}

	// inventory skew: 多头压低双边报价促卖出，空头抬高促买入
	mid := fairPrice - float64(view.Position*p.params.SkewPerLotCents)

	bidPrice := floorTick(mid-float64(halfSpread), p.params.TickSize)
	askPrice := ceilTick(mid+float64(halfSpread), p.params.TickSize)
	if askPrice <= bidPrice {
		askPrice = bidPrice + p.params.TickSize
	}

	volumeRoom := view.Limits.Volume - view.ActiveVolume

	bidSize := p.params.QuoteSize
	if room := view.Limits.Position - view.Position - view.BuyExposure; bidSize > room {
		bidSize = room
	}
	if bidSize > volumeRoom {
		bidSize = volumeRoom
	}

	var d Desired
	if bidPrice > 0 && bidSize >= 1 {
		d.Bid = &Quote{Price: bidPrice, Size: bidSize}
		volumeRoom -= bidSize
	}

	askSize := p.params.QuoteSize
	if room := view.Limits.Position + view.Position - view.SellExposure; askSize > room {
		askSize = room
	}
	if askSize > volumeRoom {
		askSize = volumeRoom
	}
	if askPrice > 0 && askSize >= 1 {
		d.Ask = &Quote{Price: askPrice, Size: askSize}
	}
	return d
}

func floorTick(price float64, tick int) int {
	if price <= 0 {
		return 0
	}
	n := int(price)
	return n - n%tick
}

func ceilTick(price float64, tick int) int {
	if price <= 0 {
		return 0
	}
	n := int(price)
	if rem := n % tick; rem != 0 {
		n += tick - rem
	}
	if float64(n) < price {
		n += tick
	}
	return n
}
