// Package risk 维护持仓与挂单敞口，并在下单前做限额预检。
//
// 四个限额全部来自注入配置（交易所规则），这里绝不硬编码：
//   - ETF 持仓 |pos| <= PositionLimit（成交后任意时刻）
//   - 活跃订单数 <= OrderCountLimit
//   - 活跃挂单量 <= VolumeLimit（只计挂在簿上的余量，成交/撤单即释放）
//   - 期货持仓只做记账，不受限额约束（对冲由交易所代执行）
//
// 所有变更方法必须由交易主循环单线程调用，且每个事件恰好调用一次；
// 重复调用会毁掉不变量——这属于上游逻辑缺陷，由 CheckInvariants 和测试兜住，
// 不属于生产路径要“优雅处理”的情况。
package risk

import "fmt"

// Violation 预检结果。None 表示可下。
type Violation int

const (
	None Violation = iota
	PositionLimit
	OrderCountLimit
	VolumeLimit
)

func (v Violation) String() string {
	switch v {
	case None:
		return "none"
	case PositionLimit:
		return "position_limit"
	case OrderCountLimit:
		return "order_count_limit"
	case VolumeLimit:
		return "volume_limit"
	}
	return fmt.Sprintf("violation(%d)", int(v))
}

// Limits 交易所注入的硬限额。
type Limits struct {
	Position   int // ETF 持仓绝对值上限
	OrderCount int // 活跃订单数上限
	Volume     int // 活跃挂单量上限（lots）
}

// Side 与 exchange.Side 同构，这里复制一份避免包依赖环。
type Side int8

const (
	Sell Side = 0
	Buy  Side = 1
)

// Ledger 风险台账。字段全部为引擎单线程私有。
type Ledger struct {
	limits Limits

	etfPosition    int
	futurePosition int

	buyExposure  int // 活跃买单余量合计
	sellExposure int // 活跃卖单余量合计
	liveOrders   int
	activeVolume int // buyExposure + sellExposure，独立维护以便交叉校验
}

func NewLedger(limits Limits) *Ledger {
	return &Ledger{limits: limits}
}

func (l *Ledger) Limits() Limits { return l.limits }

func (l *Ledger) Position() int { return l.etfPosition }

func (l *Ledger) FuturePosition() int { return l.futurePosition }

func (l *Ledger) BuyExposure() int { return l.buyExposure }

func (l *Ledger) SellExposure() int { return l.sellExposure }

func (l *Ledger) LiveOrders() int { return l.liveOrders }

func (l *Ledger) ActiveVolume() int { return l.activeVolume }

// WouldViolate 预检：新挂 side/volume 的订单会不会踩限额。
// 持仓检查按最坏情况算：假设本侧所有挂单（含新单）全部成交。
func (l *Ledger) WouldViolate(side Side, volume int) Violation {
	if l.liveOrders+1 > l.limits.OrderCount {
		return OrderCountLimit
	}
	if l.activeVolume+volume > l.limits.Volume {
		return VolumeLimit
	}
	if side == Buy {
		if l.etfPosition+l.buyExposure+volume > l.limits.Position {
			return PositionLimit
		}
	} else {
		if l.etfPosition-l.sellExposure-volume < -l.limits.Position {
			return PositionLimit
		}
	}
	return None
}

// ApplyOpen 新订单进入 pending-insert 即登记敞口（交易所同样在收到 insert 时就计数）。
func (l *Ledger) ApplyOpen(side Side, volume int) {
	l.liveOrders++
	l.activeVolume += volume
	if side == Buy {
		l.buyExposure += volume
	} else {
		l.sellExposure += volume
	}
}

// ApplyFill ETF 成交：调持仓、释放对应挂单余量。
func (l *Ledger) ApplyFill(side Side, volume int) {
	if side == Buy {
		l.etfPosition += volume
		l.buyExposure -= volume
	} else {
		l.etfPosition -= volume
		l.sellExposure -= volume
	}
	l.activeVolume -= volume
}

// ApplyAmend 改量确认：remaining 的增减量（可正可负）。
func (l *Ledger) ApplyAmend(side Side, delta int) {
	l.activeVolume += delta
	if side == Buy {
		l.buyExposure += delta
	} else {
		l.sellExposure += delta
	}
}

// ApplyClose 订单离场（全部成交 / 撤单 / 拒绝）：释放剩余敞口并递减订单数。
// remaining 为离场时刻订单还挂着的量（全部成交时为 0）。
func (l *Ledger) ApplyClose(side Side, remaining int) {
	l.liveOrders--
	l.activeVolume -= remaining
	if side == Buy {
		l.buyExposure -= remaining
	} else {
		l.sellExposure -= remaining
	}
}

// ApplyLateFill 已离场订单的迟到成交：只调持仓。
// 敞口在订单离场（全成状态回报）时已经释放，这里绝不能再减一次。
func (l *Ledger) ApplyLateFill(side Side, volume int) {
	if side == Buy {
		l.etfPosition += volume
	} else {
		l.etfPosition -= volume
	}
}

// ApplyFutureFill 期货对冲成交记账。不做限额检查。
func (l *Ledger) ApplyFutureFill(side Side, volume int) {
	if side == Buy {
		l.futurePosition += volume
	} else {
		l.futurePosition -= volume
	}
}

// CheckInvariants 自检。返回非 nil 意味着上游有双重应用或漏应用的 bug，
// 调用方应当把它当缺陷记录（测试里直接 fail），而不是吞掉继续跑。
func (l *Ledger) CheckInvariants() error {
	if l.etfPosition > l.limits.Position || l.etfPosition < -l.limits.Position {
		return fmt.Errorf("etf position %d outside ±%d", l.etfPosition, l.limits.Position)
	}
	if l.buyExposure < 0 || l.sellExposure < 0 {
		return fmt.Errorf("negative exposure: buy=%d sell=%d", l.buyExposure, l.sellExposure)
	}
	if l.liveOrders < 0 || l.liveOrders > l.limits.OrderCount {
		return fmt.Errorf("live order count %d outside [0,%d]", l.liveOrders, l.limits.OrderCount)
	}
	if l.activeVolume != l.buyExposure+l.sellExposure {
		return fmt.Errorf("active volume %d != buy %d + sell %d", l.activeVolume, l.buyExposure, l.sellExposure)
	}
	if l.activeVolume > l.limits.Volume {
		return fmt.Errorf("active volume %d over limit %d", l.activeVolume, l.limits.Volume)
	}
	if l.etfPosition+l.buyExposure > l.limits.Position {
		return fmt.Errorf("worst-case long %d over limit", l.etfPosition+l.buyExposure)
	}
	if l.etfPosition-l.sellExposure < -l.limits.Position {
		return fmt.Errorf("worst-case short %d under limit", l.etfPosition-l.sellExposure)
	}
	return nil
}

// View 给报价器的只读快照。敞口字段由引擎扣除当前报价单自身的余量后填入，
// 这样报价尺寸计算才不会把即将被替换的旧报价算成双份。
type View struct {
	Position     int
	BuyExposure  int // 除当前报价单外的活跃买单余量
	SellExposure int
	ActiveVolume int // 除当前报价单外的活跃挂单量
	Limits       Limits
}
