package ws

import "github.com/quotekit/autotrader/internal/exchange"

// 帧类型。交易所所有消息都是带 type 字段的 JSON 帧。
const (
	frameLogin       = "login"
	frameLoginAck    = "login_ack"
	frameInsert      = "insert_order"
	frameCancel      = "cancel_order"
	frameAmend       = "amend_order"
	frameBookUpdate  = "order_book_update"
	frameFill        = "order_filled"
	frameOrderStatus = "order_status"
	frameTradeTicks  = "trade_ticks"
	frameError       = "error"
)

// envelope 先解析 type，再按类型解析剩余字段。
type envelope struct {
	Type string `json:"type"`
}

type loginFrame struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

type loginAckFrame struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type insertFrame struct {
	Type       string `json:"type"`
	OrderID    int    `json:"client_order_id"`
	Instrument int    `json:"instrument"`
	Side       int    `json:"side"`
	Price      int    `json:"price"`
	Volume     int    `json:"volume"`
	Lifespan   int    `json:"lifespan"`
}

type cancelFrame struct {
	Type    string `json:"type"`
	OrderID int    `json:"client_order_id"`
}

type amendFrame struct {
	Type    string `json:"type"`
	OrderID int    `json:"client_order_id"`
	Volume  int    `json:"volume"`
}

type bookUpdateFrame struct {
	Type       string `json:"type"`
	Instrument int    `json:"instrument"`
	Sequence   int    `json:"sequence_number"`
	AskPrices  []int  `json:"ask_prices"`
	AskVolumes []int  `json:"ask_volumes"`
	BidPrices  []int  `json:"bid_prices"`
	BidVolumes []int  `json:"bid_volumes"`
}

type fillFrame struct {
	Type       string `json:"type"`
	OrderID    int    `json:"client_order_id"`
	Instrument int    `json:"instrument"`
	Side       int    `json:"side"`
	Price      int    `json:"price"`
	Volume     int    `json:"volume"`
	Remaining  int    `json:"remaining_volume"`
	Fee        int    `json:"fee"`
}

type orderStatusFrame struct {
	Type            string `json:"type"`
	OrderID         int    `json:"client_order_id"`
	FillVolume      int    `json:"fill_volume"`
	RemainingVolume int    `json:"remaining_volume"`
	Fees            int    `json:"fees"`
}

type tickEntry struct {
	Price  int `json:"price"`
	Volume int `json:"volume"`
}

type tradeTicksFrame struct {
	Type       string      `json:"type"`
	Instrument int         `json:"instrument"`
	Ticks      []tickEntry `json:"ticks"`
}

type errorFrame struct {
	Type    string `json:"type"`
	OrderID int    `json:"client_order_id"`
	Message string `json:"message"`
}

func clampLevels(src []int) [exchange.TopLevels]int {
	var out [exchange.TopLevels]int
	n := len(src)
	if n > exchange.TopLevels {
		n = exchange.TopLevels
	}
	copy(out[:], src[:n])
	return out
}

func (f *bookUpdateFrame) toEvent() exchange.BookUpdate {
	return exchange.BookUpdate{
		Instrument: exchange.Instrument(f.Instrument),
		Sequence:   f.Sequence,
		AskPrices:  clampLevels(f.AskPrices),
		AskVolumes: clampLevels(f.AskVolumes),
		BidPrices:  clampLevels(f.BidPrices),
		BidVolumes: clampLevels(f.BidVolumes),
	}
}

func (f *fillFrame) toEvent() exchange.FillEvent {
	return exchange.FillEvent{
		OrderID:    f.OrderID,
		Instrument: exchange.Instrument(f.Instrument),
		Side:       exchange.Side(f.Side),
		Price:      f.Price,
		Volume:     f.Volume,
		Remaining:  f.Remaining,
		Fee:        f.Fee,
	}
}

func (f *tradeTicksFrame) toEvent() exchange.TradeTicks {
	ticks := make([]exchange.Tick, len(f.Ticks))
	for i, t := range f.Ticks {
		ticks[i] = exchange.Tick{Price: t.Price, Volume: t.Volume}
	}
	return exchange.TradeTicks{Instrument: exchange.Instrument(f.Instrument), Ticks: ticks}
}
