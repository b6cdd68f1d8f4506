// Package exchange 定义交易所事件/动作边界。
//
// 这里只描述核心引擎消费和产出的消息形状，不关心传输层：
// WS 会话（exchange/ws）与回放器（exchange/replay）都把消息翻译成同一组事件，
// 引擎侧永远只看到单消费者 channel 上的顺序事件流。
package exchange

import "fmt"

// Instrument 交易品种。编码与交易所协议一致。
type Instrument int8

const (
	Future Instrument = 0
	ETF    Instrument = 1
)

func (i Instrument) String() string {
	switch i {
	case Future:
		return "future"
	case ETF:
		return "etf"
	}
	return fmt.Sprintf("instrument(%d)", int8(i))
}

// Side 买卖方向。SELL=0 / BUY=1，与交易所协议一致。
type Side int8

const (
	Sell Side = 0
	Buy  Side = 1
)

// Opposite 返回对侧方向（对冲腿用）。
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Lifespan 订单有效期类型。
type Lifespan int8

const (
	FillAndKill Lifespan = 0 // 立即成交否则取消
	GoodForDay  Lifespan = 1 // 留在簿上直到成交或显式取消
)

func (l Lifespan) String() string {
	if l == FillAndKill {
		return "fill_and_kill"
	}
	return "good_for_day"
}

// TopLevels 行情快照每侧档位数。
const TopLevels = 5

// Event 是引擎入站事件的密封接口。
type Event interface{ isEvent() }

// BookUpdate 订单簿快照更新：每侧最优 TopLevels 档价格/数量。
// 价格为 0 的档位表示空档。Sequence 单调递增，用于丢弃乱序快照。
type BookUpdate struct {
	Instrument Instrument
	Sequence   int
	AskPrices  [TopLevels]int
	AskVolumes [TopLevels]int
	BidPrices  [TopLevels]int
	BidVolumes [TopLevels]int
}

// FillEvent 成交回报。ETF 腿带本方订单号；期货对冲腿 OrderID 为 0
// （对冲由交易所代执行，没有本方订单）。
type FillEvent struct {
	OrderID    int
	Instrument Instrument
	Side       Side
	Price      int // cents
	Volume     int // lots
	Remaining  int // 本订单剩余数量（期货腿恒为 0）
	Fee        int // cents，做市为负（返佣）
}

// OrderStatusEvent 订单状态回报。Remaining==0 表示订单已离场
// （全部成交或已取消，区分见 FillVolume）。
type OrderStatusEvent struct {
	OrderID         int
	FillVolume      int
	RemainingVolume int
	Fees            int
}

// TradeTicks 市场成交摘要：自上一条起每个价位成交的手数。
type TradeTicks struct {
	Instrument Instrument
	Ticks      []Tick
}

// Tick 单个价位的成交量。
type Tick struct {
	Price  int
	Volume int
}

// ErrorEvent 交易所错误。OrderID 为 0 表示与具体订单无关。
type ErrorEvent struct {
	OrderID int
	Message string
}

// DisconnectEvent 会话断开通知。
type DisconnectEvent struct {
	Reason string
}

func (BookUpdate) isEvent()       {}
func (FillEvent) isEvent()        {}
func (OrderStatusEvent) isEvent() {}
func (TradeTicks) isEvent()       {}
func (ErrorEvent) isEvent()       {}
func (DisconnectEvent) isEvent()  {}

// Action 是引擎出站动作的密封接口。每个动作送出前都必须经过频率闸门。
type Action interface{ isAction() }

// InsertAction 新订单。OrderID 由引擎侧单调分配。
type InsertAction struct {
	OrderID  int
	Side     Side
	Price    int
	Volume   int
	Lifespan Lifespan
}

// CancelAction 撤单。
type CancelAction struct {
	OrderID int
}

// AmendAction 改量。只改数量不改价（改价必须撤单重下，否则排队优先级语义不对）。
type AmendAction struct {
	OrderID int
	Volume  int
}

func (InsertAction) isAction() {}
func (CancelAction) isAction() {}
func (AmendAction) isAction()  {}

// ActionSender 是会话层在出站方向暴露给核心的唯一能力。
// 实现方（WS 会话 / 回放 stub）负责序列化与网络，不做任何风控。
type ActionSender interface {
	Send(a Action) error
}
