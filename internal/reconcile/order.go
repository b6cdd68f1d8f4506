package reconcile

import (
	"fmt"

	"github.com/quotekit/autotrader/internal/exchange"
)

// State 订单生命周期状态。显式枚举而不是散落的布尔位，
// 让 diff 逻辑可以对状态做穷举检查。
type State int8

const (
	StatePendingInsert State = iota // insert 已发出，未收到交易所确认
	StateLive                       // 在簿上
	StatePendingCancel              // cancel 已发出
	StatePendingAmend               // amend 已发出
	StateFilled                     // 全部成交（终态）
	StateCancelled                  // 已取消（终态）
	StateRejected                   // 被拒绝（终态）
)

func (s State) Terminal() bool {
	return s == StateFilled || s == StateCancelled || s == StateRejected
}

func (s State) String() string {
	switch s {
	case StatePendingInsert:
		return "pending_insert"
	case StateLive:
		return "live"
	case StatePendingCancel:
		return "pending_cancel"
	case StatePendingAmend:
		return "pending_amend"
	case StateFilled:
		return "filled"
	case StateCancelled:
		return "cancelled"
	case StateRejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", int8(s))
}

// Order 本方订单。归 Reconciler 独占所有；台账只通过 ID 间接引用。
type Order struct {
	ID        int
	Side      exchange.Side
	Price     int
	Volume    int // 原始申报量
	Remaining int // 已知的簿上余量
	Lifespan  exchange.Lifespan
	State     State

	// PendingVolume 在 StatePendingAmend 期间记录改量目标。
	PendingVolume int

	// RejectReason 在 StateRejected 时记录交易所给出的原因。
	RejectReason string
}
