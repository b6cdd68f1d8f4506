package main

import (
	"testing"
	"time"

	"github.com/quotekit/autotrader/internal/exchange"
)

// 模拟引擎消费端：每条行情都触发一条指令，回报经 pump 合流回来。
// 通道缓冲压到 1，直接回写事件通道的旧接法在这里必然卡死。
func TestPumpNeverBlocksOnEchoes(t *testing.T) {
	sender := newEchoSender()
	events := make(chan exchange.Event, 1)
	market := make(chan exchange.Event)

	const records = 64
	done := make(chan struct{})
	go func() {
		defer close(done)
		nextID := 1
		statuses := 0
		for ev := range events {
			switch ev.(type) {
			case exchange.BookUpdate:
				_ = sender.Send(exchange.InsertAction{OrderID: nextID, Side: exchange.Buy, Price: 10000, Volume: 1})
				nextID++
			case exchange.OrderStatusEvent:
				statuses++
				if statuses == records {
					return
				}
			}
		}
	}()

	go pump(events, market, sender)

	for i := 0; i < records; i++ {
		select {
		case market <- exchange.BookUpdate{Instrument: exchange.ETF, Sequence: i + 1}:
		case <-time.After(5 * time.Second):
			t.Fatalf("第 %d 条行情写入被卡住", i+1)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("回报没有全部流回消费端")
	}
	close(market)
}
