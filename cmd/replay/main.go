// replay 离线回放：把历史行情喂给引擎，指令落入本地模拟器并即时回报，
// 结束后打印会话摘要。用于策略参数调试和回归验证。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/quotekit/autotrader/internal/config"
	"github.com/quotekit/autotrader/internal/engine"
	"github.com/quotekit/autotrader/internal/exchange"
	"github.com/quotekit/autotrader/internal/exchange/replay"
	"github.com/quotekit/autotrader/internal/quote"
	"github.com/quotekit/autotrader/internal/risk"
	"github.com/quotekit/autotrader/pkg/logger"
	"github.com/quotekit/autotrader/pkg/ratelimit"
)

// echoSender 本地指令模拟器：插单即接受，撤单即全撤，改单即生效。
// 不撮合成交，回放里的成交只看行情驱动的报价行为。
//
// Send 在引擎 goroutine 里被调用，所以回报绝不能直接写回引擎自己的
// 事件通道——通道一满引擎就会卡在自产自销上。回报先进无界队列，
// 由 pump 在行情记录之间送进引擎。
type echoSender struct {
	mu      sync.Mutex
	pending []exchange.Event
	notify  chan struct{} // 容量 1，队列非空的信号
	orders  map[int]int   // orderID -> remaining

	inserts int
	cancels int
	amends  int
}

func newEchoSender() *echoSender {
	return &echoSender{
		notify: make(chan struct{}, 1),
		orders: make(map[int]int),
	}
}

func (s *echoSender) Send(a exchange.Action) error {
	switch act := a.(type) {
	case exchange.InsertAction:
		s.inserts++
		s.orders[act.OrderID] = act.Volume
		s.push(exchange.OrderStatusEvent{OrderID: act.OrderID, RemainingVolume: act.Volume})
	case exchange.CancelAction:
		s.cancels++
		delete(s.orders, act.OrderID)
		s.push(exchange.OrderStatusEvent{OrderID: act.OrderID, RemainingVolume: 0})
	case exchange.AmendAction:
		s.amends++
		s.orders[act.OrderID] = act.Volume
		s.push(exchange.OrderStatusEvent{OrderID: act.OrderID, RemainingVolume: act.Volume})
	}
	return nil
}

func (s *echoSender) push(ev exchange.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *echoSender) pop() (exchange.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, false
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, true
}

// pump 把行情记录和模拟器回报合流进引擎通道，回报优先。
// market 关闭后补发断开事件，引擎收到后自行撤单退出。
func pump(events chan<- exchange.Event, market <-chan exchange.Event, sender *echoSender) {
	for {
		if ev, ok := sender.pop(); ok {
			events <- ev
			continue
		}
		select {
		case ev, ok := <-market:
			if !ok {
				events <- exchange.DisconnectEvent{Reason: "回放结束"}
				return
			}
			events <- ev
		case <-sender.notify:
		}
	}
}

func main() {
	var (
		dataPath   = flag.String("data", "", "行情 CSV 路径或 http(s) 地址")
		configPath = flag.String("config", "", "配置文件路径（可选）")
		speed      = flag.Float64("speed", 0, "回放倍速，0 表示不限速")
	)
	flag.Parse()

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "用法: replay -data market.csv [-config autotrader.yaml] [-speed 1.0]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile})
	log := logrus.WithField("component", "replay-main")

	src, err := replay.Load(*dataPath)
	if err != nil {
		log.WithError(err).Error("加载行情失败")
		os.Exit(1)
	}

	sender := newEchoSender()

	eng := engine.New(engine.Options{
		Limits: risk.Limits{
			Position:   cfg.PositionLimit,
			OrderCount: cfg.OrderCountLimit,
			Volume:     cfg.VolumeLimit,
		},
		Governor: ratelimit.NewWindow(cfg.RateInterval(), cfg.RateLimit),
		Planner: quote.Params{
			HalfSpreadCents: cfg.HalfSpreadCents,
			SkewPerLotCents: cfg.SkewPerLotCents,
			QuoteSize:       cfg.QuoteSize,
			TickSize:        cfg.TickSize,
		},
		HedgeWindow: cfg.HedgeWindow(),
		Sender:      sender,
	})

	ctx := context.Background()
	market := make(chan exchange.Event, 64)
	go func() {
		defer close(market)
		if err := src.Stream(ctx, market, *speed); err != nil {
			log.WithError(err).Warn("回放中断")
		}
	}()
	go pump(eng.Events(), market, sender)

	if err := eng.Run(ctx); err != nil {
		log.WithError(err).Error("引擎异常退出")
		os.Exit(1)
	}

	st := eng.Status()
	fmt.Printf("回放完成: %d 条记录\n", src.Len())
	fmt.Printf("指令: 插单 %d  撤单 %d  改单 %d\n", sender.inserts, sender.cancels, sender.amends)
	fmt.Printf("收尾: 持仓 %d  挂单 %d  挂量 %d\n", st.Position, st.LiveOrders, st.ActiveVolume)
	fmt.Printf("盈亏: %.2f  费用: %.2f\n", float64(st.PnLCents)/100, float64(st.FeesCents)/100)
}
