// Package engine 是交易主循环：唯一消费者从事件 channel 取交易所事件，
// 按到达顺序依次过 簿 → 台账 → 对账器 → 对冲核对，再重算报价。
//
// 并发模型：核心组件全部是本循环的单线程私有，挂起只发生在 channel
// 接收处；I/O 层（WS 会话 / 回放器）哪怕并发收包，也必须先串行化到
// 这一条 channel 再进核心。对外的状态快照用原子指针发布，
// 控制面 / dashboard 并发读不会撕裂。
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quotekit/autotrader/internal/account"
	"github.com/quotekit/autotrader/internal/book"
	"github.com/quotekit/autotrader/internal/exchange"
	"github.com/quotekit/autotrader/internal/hedge"
	"github.com/quotekit/autotrader/internal/journal"
	"github.com/quotekit/autotrader/internal/quote"
	"github.com/quotekit/autotrader/internal/reconcile"
	"github.com/quotekit/autotrader/internal/risk"
	"github.com/quotekit/autotrader/pkg/ratelimit"
)

var log = logrus.WithField("component", "engine")

// Clock 注入时钟，测试里换成假时钟即可让整条链路确定性重放。
type Clock func() time.Time

// Options 引擎构造参数。
type Options struct {
	Limits      risk.Limits
	Governor    *ratelimit.Window
	Planner     quote.Params
	Estimator   quote.Estimator // nil 时用簿内加权中间价
	Breaker     risk.CircuitBreakerConfig
	HedgeWindow time.Duration
	Sender      exchange.ActionSender
	Journal     *journal.Journal // 可为 nil
	Clock       Clock            // nil 时用 time.Now
	EventBuffer int
}

// Engine 交易引擎。
type Engine struct {
	events chan exchange.Event
	clock  Clock

	etfBook    *book.Ladder
	futureBook *book.Ladder

	ledger    *risk.Ledger
	planner   *quote.Planner
	estimator quote.Estimator
	rec       *reconcile.Reconciler
	hedge     *hedge.Listener
	acct      *account.Account
	breaker   *risk.CircuitBreaker
	gov       *ratelimit.Window
	jnl       *journal.Journal

	status atomic.Pointer[Status]
}

// Status 跨 goroutine 发布的只读状态快照。
type Status struct {
	At             time.Time `json:"at"`
	Position       int       `json:"position"`
	FuturePosition int       `json:"future_position"`
	PnLCents       int64     `json:"pnl_cents"`
	FeesCents      int64     `json:"fees_cents"`
	LiveOrders     int       `json:"live_orders"`
	ActiveVolume   int       `json:"active_volume"`
	BidPrice       int       `json:"bid_price"`
	BidSize        int       `json:"bid_size"`
	AskPrice       int       `json:"ask_price"`
	AskSize        int       `json:"ask_size"`
	GovernorBudget int       `json:"governor_budget"`
	GovernorUsed   int       `json:"governor_used"`
	HedgePending   int       `json:"hedge_pending"`
	HedgeLate      int       `json:"hedge_late"`
	Halted         bool      `json:"halted"`
	HaltReason     string    `json:"halt_reason,omitempty"`
}

func New(opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	estimator := opts.Estimator
	if estimator == nil {
		estimator = quote.WeightedMid{}
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = 1024
	}

	ledger := risk.NewLedger(opts.Limits)
	e := &Engine{
		events:     make(chan exchange.Event, buffer),
		clock:      clock,
		etfBook:    book.NewLadder(exchange.ETF),
		futureBook: book.NewLadder(exchange.Future),
		ledger:     ledger,
		planner:    quote.NewPlanner(opts.Planner),
		estimator:  estimator,
		rec:        reconcile.New(opts.Governor, ledger, opts.Sender),
		hedge:      hedge.NewListener(ledger, opts.HedgeWindow),
		acct:       account.New(),
		breaker:    risk.NewCircuitBreaker(opts.Breaker),
		gov:        opts.Governor,
		jnl:        opts.Journal,
	}
	e.publishStatus(clock())
	return e
}

// Events 返回入站事件 channel。会话层是唯一生产者。
func (e *Engine) Events() chan<- exchange.Event { return e.events }

// Status 最近一次发布的状态快照（并发安全）。
func (e *Engine) Status() Status {
	if s := e.status.Load(); s != nil {
		return *s
	}
	return Status{}
}

// Run 运行主循环直到 ctx 取消或会话断开，然后尽预算撤单收尾。
func (e *Engine) Run(ctx context.Context) error {
	log.Info("engine started")
	defer log.Info("engine stopped")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case ev, ok := <-e.events:
			if !ok {
				e.shutdown()
				return nil
			}
			if done := e.handle(ev); done {
				e.shutdown()
				return nil
			}
		}
	}
}

// handle 处理一条事件；返回 true 表示会话终止。
func (e *Engine) handle(ev exchange.Event) bool {
	now := e.clock()
	defer func() {
		e.hedge.Expire(now)
		e.publishStatus(now)
	}()

	switch v := ev.(type) {
	case exchange.BookUpdate:
		e.onBookUpdate(v, now)
	case exchange.FillEvent:
		e.onFill(v, now)
	case exchange.OrderStatusEvent:
		e.onOrderStatus(v, now)
	case exchange.TradeTicks:
		e.onTradeTicks(v, now)
	case exchange.ErrorEvent:
		e.onError(v, now)
	case exchange.DisconnectEvent:
		log.WithField("reason", v.Reason).Warn("session disconnected")
		e.jnl.Append(now, "disconnect", v)
		return true
	}
	return false
}

func (e *Engine) onBookUpdate(u exchange.BookUpdate, now time.Time) {
	ladder := e.etfBook
	if u.Instrument == exchange.Future {
		ladder = e.futureBook
	}
	if !ladder.ApplyUpdate(u) {
		log.WithFields(logrus.Fields{
			"instrument": u.Instrument,
			"sequence":   u.Sequence,
		}).Debug("stale book update dropped")
		return
	}
	e.replan(now)
}

func (e *Engine) onFill(f exchange.FillEvent, now time.Time) {
	if f.Instrument == exchange.Future {
		e.hedge.OnFutureFill(f.Side, f.Price, f.Volume, now)
		e.acct.Transact(exchange.Future, f.Side, f.Price, f.Volume, f.Fee)
		e.jnl.Append(now, "hedge_fill", f)
		return
	}

	if e.rec.OnFill(f.OrderID, f.Remaining) {
		e.ledger.ApplyFill(riskSide(f.Side), f.Volume)
	} else {
		// 全成状态回报先到时订单已离场、敞口已释放，只补持仓
		log.WithField("order_id", f.OrderID).Warn("fill for closed order, adjusting position only")
		e.ledger.ApplyLateFill(riskSide(f.Side), f.Volume)
	}
	e.hedge.OnETFFill(f.Side, f.Price, f.Volume, now)
	e.acct.Transact(exchange.ETF, f.Side, f.Price, f.Volume, f.Fee)
	e.jnl.Append(now, "fill", f)

	// 成交后的台账不一致属于逻辑缺陷（漏单/双计），只能记错，不能兜
	if err := e.ledger.CheckInvariants(); err != nil {
		log.WithError(err).Error("risk ledger invariant violated after fill")
		e.jnl.Append(now, "invariant_violation", err.Error())
	}

	e.markToMarket()
	e.replan(now)
}

func (e *Engine) onOrderStatus(s exchange.OrderStatusEvent, now time.Time) {
	e.rec.OnStatus(s.OrderID, s.FillVolume, s.RemainingVolume)
	e.breaker.OnAccepted()
	e.replan(now)
}

func (e *Engine) onTradeTicks(t exchange.TradeTicks, now time.Time) {
	ladder := e.etfBook
	if t.Instrument == exchange.Future {
		ladder = e.futureBook
	}
	for _, tick := range t.Ticks {
		ladder.SetLastTraded(tick.Price)
	}
	e.markToMarket()
}

func (e *Engine) onError(ev exchange.ErrorEvent, now time.Time) {
	if ev.OrderID == 0 {
		log.WithField("message", ev.Message).Error("exchange error")
		e.jnl.Append(now, "exchange_error", ev)
		return
	}
	log.WithFields(logrus.Fields{
		"order_id": ev.OrderID,
		"message":  ev.Message,
	}).Warn("order rejected")
	e.rec.OnReject(ev.OrderID, ev.Message)
	e.breaker.OnReject()
	e.jnl.Append(now, "reject", ev)
	e.replan(now)
}

// replan 重算期望报价并对账。熔断打开时期望置空——等价于撤掉双边。
func (e *Engine) replan(now time.Time) {
	if err := e.breaker.AllowQuoting(); err != nil {
		e.rec.Sync(quote.Desired{}, now)
		return
	}

	fair, ok := e.estimator.FairPrice(e.etfBook, e.futureBook)
	if !ok {
		e.rec.Retry(now)
		return
	}

	e.rec.Sync(e.planner.Plan(fair, e.riskView()), now)
}

// riskView 构造剔除当前报价单自身敞口的快照，报价尺寸才不会把
// 即将被替换的旧单算成双份。
func (e *Engine) riskView() risk.View {
	quoteBuy, quoteSell := e.rec.QuoteExposure()
	return risk.View{
		Position:     e.ledger.Position(),
		BuyExposure:  e.ledger.BuyExposure() - quoteBuy,
		SellExposure: e.ledger.SellExposure() - quoteSell,
		ActiveVolume: e.ledger.ActiveVolume() - quoteBuy - quoteSell,
		Limits:       e.ledger.Limits(),
	}
}

func (e *Engine) markToMarket() {
	future := e.futureBook.LastTraded()
	etf := e.etfBook.LastTraded()
	if future == 0 || etf == 0 {
		return
	}
	e.acct.MarkToMarket(future, etf)
	e.breaker.SetSessionPnLCents(e.acct.ProfitOrLossCents())
}

func (e *Engine) shutdown() {
	now := e.clock()
	cancelled, abandoned := e.rec.CancelAll(now)
	log.WithFields(logrus.Fields{
		"cancelled": cancelled,
		"abandoned": abandoned,
	}).Info("session teardown")
	e.jnl.Append(now, "session_end", map[string]int{
		"cancelled": cancelled,
		"abandoned": abandoned,
	})
	e.publishStatus(now)
}

func (e *Engine) publishStatus(now time.Time) {
	s := Status{
		At:             now,
		Position:       e.ledger.Position(),
		FuturePosition: e.ledger.FuturePosition(),
		PnLCents:       e.acct.ProfitOrLossCents(),
		FeesCents:      e.acct.TotalFees().IntPart(),
		LiveOrders:     e.ledger.LiveOrders(),
		ActiveVolume:   e.ledger.ActiveVolume(),
		GovernorBudget: e.gov.Budget(now),
		GovernorUsed:   e.gov.InWindow(now),
		HedgePending:   e.hedge.PendingVolume(),
		HedgeLate:      e.hedge.LateCount(),
	}
	bid, ask := e.rec.Quotes()
	if bid != nil {
		s.BidPrice, s.BidSize = bid.Price, bid.Remaining
	}
	if ask != nil {
		s.AskPrice, s.AskSize = ask.Price, ask.Remaining
	}
	if err := e.breaker.AllowQuoting(); err != nil {
		s.Halted = true
		s.HaltReason = e.breaker.HaltReason()
	}
	e.status.Store(&s)
}

func riskSide(s exchange.Side) risk.Side {
	if s == exchange.Buy {
		return risk.Buy
	}
	return risk.Sell
}
