package risk

import "fmt"

// ErrCircuitBreakerOpen 表示熔断器已打开，本场剩余时间停止报价。
var ErrCircuitBreakerOpen = fmt.Errorf("circuit breaker open")

// CircuitBreakerConfig 熔断器配置。约定：阈值 <= 0 表示关闭对应限制。
type CircuitBreakerConfig struct {
	// MaxConsecutiveRejects 交易所连续拒单上限。成串的 reject 几乎总是
	// 本方状态和交易所状态脱节（价格档位失效、限额口径漂移），
	// 继续机械重发只会烧频率预算。
	MaxConsecutiveRejects int

	// SessionLossLimitCents 本场最大亏损（分）。达到即停止报价，
	// 只挂出清方向的单（由引擎侧决定如何收尾）。
	SessionLossLimitCents int64
}

// CircuitBreaker 报价熔断器。
//
// 与台账一样只被交易主循环单线程访问，不需要原子量。
// PnL 由引擎在每次 mark-to-market 后灌入。
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	halted             bool
	haltReason         string
	consecutiveRejects int
	sessionPnlCents    int64
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg}
}

// Halt 手动熔断（人工介入或检测到严重异常）。
func (cb *CircuitBreaker) Halt(reason string) {
	cb.halted = true
	cb.haltReason = reason
}

// Resume 手动恢复（同时清空连续拒单计数）。
func (cb *CircuitBreaker) Resume() {
	cb.halted = false
	cb.haltReason = ""
	cb.consecutiveRejects = 0
}

// HaltReason 返回熔断原因，未熔断时为空串。
func (cb *CircuitBreaker) HaltReason() string { return cb.haltReason }

// AllowQuoting 快路径检查是否允许继续报价。
func (cb *CircuitBreaker) AllowQuoting() error {
	if cb.halted {
		return ErrCircuitBreakerOpen
	}

	if cb.cfg.MaxConsecutiveRejects > 0 && cb.consecutiveRejects >= cb.cfg.MaxConsecutiveRejects {
		cb.Halt(fmt.Sprintf("%d consecutive rejects", cb.consecutiveRejects))
		return ErrCircuitBreakerOpen
	}

	if cb.cfg.SessionLossLimitCents > 0 && cb.sessionPnlCents <= -cb.cfg.SessionLossLimitCents {
		cb.Halt(fmt.Sprintf("session loss %d cents", -cb.sessionPnlCents))
		return ErrCircuitBreakerOpen
	}

	return nil
}

// OnAccepted 订单被交易所接受后调用，清空连续拒单计数。
func (cb *CircuitBreaker) OnAccepted() {
	cb.consecutiveRejects = 0
}

// OnReject 收到拒单后调用。
func (cb *CircuitBreaker) OnReject() {
	cb.consecutiveRejects++
}

// SetSessionPnLCents 覆盖本场 PnL（分）。引擎在 mark-to-market 后调用。
func (cb *CircuitBreaker) SetSessionPnLCents(pnl int64) {
	cb.sessionPnlCents = pnl
}
