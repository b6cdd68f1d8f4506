// Package reconcile 把期望报价与在场订单对齐，产出最小动作集。
//
// 策略（与交易所 amend 语义对齐）：
//   - 价格变了：撤单重下——amend 不改价，改价必须重排队列优先级
//   - 只有量变了：amend，保住时间优先级
//   - 每个动作发出前过频率闸门；被闸下的动作留到下一轮重试，
//     除非期望状态已经变化（被新的 Sync 覆盖即视为作废）
//
// 所有方法只能由交易主循环调用。
package reconcile

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quotekit/autotrader/internal/exchange"
	"github.com/quotekit/autotrader/internal/quote"
	"github.com/quotekit/autotrader/internal/risk"
	"github.com/quotekit/autotrader/pkg/ratelimit"
)

var log = logrus.WithField("component", "reconcile")

// Reconciler 订单对账器。独占所有在场订单。
type Reconciler struct {
	gov    *ratelimit.Window
	ledger *risk.Ledger
	sender exchange.ActionSender

	nextID int
	orders map[int]*Order

	// 当前报价槽位（0 = 空）。被替换下来的旧单在撤单确认前
	// 仍留在 orders 里，但不再占槽位。
	bidID int
	askID int

	desired quote.Desired
}

func New(gov *ratelimit.Window, ledger *risk.Ledger, sender exchange.ActionSender) *Reconciler {
	return &Reconciler{
		gov:    gov,
		ledger: ledger,
		sender: sender,
		nextID: 1,
		orders: make(map[int]*Order, 16),
	}
}

// Sync 用新的期望状态覆盖旧的（旧的未完成动作即作废），然后尽力对齐。
func (r *Reconciler) Sync(d quote.Desired, now time.Time) {
	r.desired = d
	r.attempt(now)
}

// Retry 在期望状态不变的情况下重试上一轮被闸下/被风控挡下的动作。
func (r *Reconciler) Retry(now time.Time) {
	r.attempt(now)
}

func (r *Reconciler) attempt(now time.Time) {
	r.bidID = r.syncSide(exchange.Buy, r.bidID, r.desired.Bid, now)
	r.askID = r.syncSide(exchange.Sell, r.askID, r.desired.Ask, now)
}

func (r *Reconciler) syncSide(side exchange.Side, slot int, want *quote.Quote, now time.Time) int {
	cur := r.orders[slot]
	if cur != nil && cur.State.Terminal() {
		cur = nil
	}
	if cur == nil {
		slot = 0
	}

	if want == nil {
		if cur != nil && (cur.State == StateLive || cur.State == StatePendingInsert) {
			r.sendCancel(cur, now)
		}
		return slot
	}

	if cur == nil {
		if o := r.sendInsert(side, want, now); o != nil {
			return o.ID
		}
		return 0
	}

	// 撤单中的旧单不再归槽位管；上面 cur==nil 分支会补挂新单。
	if cur.State == StatePendingCancel {
		return slot
	}

	if cur.Price != want.Price {
		// cancel-and-reinsert。撤单送出后立即尝试补挂：
		// 新旧两单短暂并存，风控按双份敞口把关，不够就等撤单确认。
		if !r.sendCancel(cur, now) {
			return slot
		}
		if o := r.sendInsert(side, want, now); o != nil {
			return o.ID
		}
		return 0
	}

	target := cur.Remaining
	if cur.State == StatePendingAmend {
		target = cur.PendingVolume
	}
	if target != want.Size && cur.State == StateLive {
		r.sendAmend(cur, want.Size, now)
	}
	return slot
}

func (r *Reconciler) sendInsert(side exchange.Side, want *quote.Quote, now time.Time) *Order {
	if v := r.ledger.WouldViolate(riskSide(side), want.Size); v != risk.None {
		log.WithFields(logrus.Fields{
			"side":      side,
			"price":     want.Price,
			"size":      want.Size,
			"violation": v,
		}).Debug("insert withheld by risk ledger")
		return nil
	}
	if !r.gov.Admit(now) {
		log.WithField("side", side).Debug("insert deferred by rate governor")
		return nil
	}

	o := &Order{
		ID:        r.nextID,
		Side:      side,
		Price:     want.Price,
		Volume:    want.Size,
		Remaining: want.Size,
		Lifespan:  exchange.GoodForDay,
		State:     StatePendingInsert,
	}
	r.nextID++
	r.orders[o.ID] = o
	r.ledger.ApplyOpen(riskSide(side), want.Size)

	if err := r.sender.Send(exchange.InsertAction{
		OrderID:  o.ID,
		Side:     side,
		Price:    want.Price,
		Volume:   want.Size,
		Lifespan: exchange.GoodForDay,
	}); err != nil {
		log.WithError(err).WithField("order_id", o.ID).Error("insert send failed")
		o.State = StateRejected
		o.RejectReason = err.Error()
		r.ledger.ApplyClose(riskSide(side), o.Remaining)
		delete(r.orders, o.ID)
		return nil
	}

	log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"side":     side,
		"price":    want.Price,
		"size":     want.Size,
	}).Info("insert sent")
	return o
}

func (r *Reconciler) sendCancel(o *Order, now time.Time) bool {
	if !r.gov.Admit(now) {
		log.WithField("order_id", o.ID).Debug("cancel deferred by rate governor")
		return false
	}
	prev := o.State
	o.State = StatePendingCancel
	if err := r.sender.Send(exchange.CancelAction{OrderID: o.ID}); err != nil {
		log.WithError(err).WithField("order_id", o.ID).Error("cancel send failed")
		o.State = prev
		return false
	}
	log.WithField("order_id", o.ID).Info("cancel sent")
	return true
}

func (r *Reconciler) sendAmend(o *Order, newSize int, now time.Time) {
	if !r.gov.Admit(now) {
		log.WithField("order_id", o.ID).Debug("amend deferred by rate governor")
		return
	}
	o.State = StatePendingAmend
	o.PendingVolume = newSize
	if err := r.sender.Send(exchange.AmendAction{OrderID: o.ID, Volume: newSize}); err != nil {
		log.WithError(err).WithField("order_id", o.ID).Error("amend send failed")
		o.State = StateLive
		return
	}
	log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"from":     o.Remaining,
		"to":       newSize,
	}).Info("amend sent")
}

// OnFill 处理本方 ETF 成交回报（台账的持仓调整由引擎负责，这里只管订单簿记）。
// 返回 false 表示订单已离场（先到的全成状态回报已经释放了敞口），
// 引擎据此只调持仓、不再重复释放敞口。
func (r *Reconciler) OnFill(orderID, remaining int) bool {
	o := r.orders[orderID]
	if o == nil || o.State.Terminal() {
		return false
	}
	o.Remaining = remaining
	if o.State == StatePendingInsert {
		o.State = StateLive
	}
	if remaining == 0 {
		o.State = StateFilled
		r.close(o, 0)
	}
	return true
}

// OnStatus 处理订单状态回报。只对状态迁移动作，回显一律忽略，
// 避免与成交回报重复记账。
func (r *Reconciler) OnStatus(orderID, fillVolume, remaining int) {
	o := r.orders[orderID]
	if o == nil || o.State.Terminal() {
		return
	}

	if remaining == 0 {
		if fillVolume >= o.Volume && fillVolume > 0 {
			o.State = StateFilled
		} else {
			o.State = StateCancelled
		}
		released := o.Remaining
		o.Remaining = 0
		r.close(o, released)
		return
	}

	switch o.State {
	case StatePendingInsert:
		o.State = StateLive
	case StatePendingAmend:
		if remaining != o.Remaining {
			r.ledger.ApplyAmend(riskSide(o.Side), remaining-o.Remaining)
			o.Remaining = remaining
		}
		o.State = StateLive
	}
}

// OnReject 处理交易所对某订单的错误回报。
// 对 in-flight 的 amend/cancel 被拒：订单还在簿上，回到 Live 即可；
// insert 被拒：订单从未进场，释放敞口。
func (r *Reconciler) OnReject(orderID int, reason string) {
	o := r.orders[orderID]
	if o == nil || o.State.Terminal() {
		return
	}
	switch o.State {
	case StatePendingAmend, StatePendingCancel:
		log.WithFields(logrus.Fields{
			"order_id": orderID,
			"reason":   reason,
			"state":    o.State,
		}).Warn("in-flight operation rejected, order stays live")
		o.State = StateLive
	default:
		o.State = StateRejected
		o.RejectReason = reason
		r.close(o, o.Remaining)
	}
}

func (r *Reconciler) close(o *Order, released int) {
	r.ledger.ApplyClose(riskSide(o.Side), released)
	delete(r.orders, o.ID)
	if r.bidID == o.ID {
		r.bidID = 0
	}
	if r.askID == o.ID {
		r.askID = 0
	}
	log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"state":    o.State,
	}).Info("order closed")
}

// CancelAll 收盘撤单：在频率预算内逐个撤，预算用完即放弃剩余
// （会话马上就没了，宁可留单也绝不越限）。返回 (已撤, 放弃) 数。
func (r *Reconciler) CancelAll(now time.Time) (cancelled, abandoned int) {
	for _, o := range r.orders {
		if o.State != StateLive && o.State != StatePendingInsert {
			continue
		}
		if r.gov.Budget(now) == 0 || !r.sendCancel(o, now) {
			abandoned++
			continue
		}
		cancelled++
	}
	return cancelled, abandoned
}

// Lookup 按 ID 查订单（台账式只读引用）。
func (r *Reconciler) Lookup(orderID int) (Order, bool) {
	o := r.orders[orderID]
	if o == nil {
		return Order{}, false
	}
	return *o, true
}

// LiveCount 在场（非终态）订单数。
func (r *Reconciler) LiveCount() int { return len(r.orders) }

// QuoteExposure 当前报价槽位订单占用的敞口（买、卖、合计），
// 引擎用它构造剔除自身报价的 risk.View。
func (r *Reconciler) QuoteExposure() (buyVol, sellVol int) {
	if o := r.orders[r.bidID]; o != nil && !o.State.Terminal() {
		buyVol = o.Remaining
	}
	if o := r.orders[r.askID]; o != nil && !o.State.Terminal() {
		sellVol = o.Remaining
	}
	return
}

// Quotes 返回当前报价槽位的订单快照（状态页/dashboard 用）。
func (r *Reconciler) Quotes() (bid, ask *Order) {
	if o := r.orders[r.bidID]; o != nil && !o.State.Terminal() {
		cp := *o
		bid = &cp
	}
	if o := r.orders[r.askID]; o != nil && !o.State.Terminal() {
		cp := *o
		ask = &cp
	}
	return
}

func riskSide(s exchange.Side) risk.Side {
	if s == exchange.Buy {
		return risk.Buy
	}
	return risk.Sell
}
