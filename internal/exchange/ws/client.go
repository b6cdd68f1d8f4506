// Package ws 交易所 WebSocket 会话：登录、收行情与回报、发指令，断线自动重连。
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/quotekit/autotrader/internal/exchange"
	"github.com/quotekit/autotrader/pkg/ratelimit"
)

var log = logrus.WithField("component", "ws")

var _ exchange.ActionSender = (*Client)(nil)

// Config WebSocket 会话配置。
type Config struct {
	URL        string
	TraderName string
	Secret     string

	HandshakeTimeout     time.Duration
	PingInterval         time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	EventBufferSize      int
}

func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout:     10 * time.Second,
		PingInterval:         15 * time.Second,
		ReconnectDelay:       time.Second,
		MaxReconnectDelay:    30 * time.Second,
		MaxReconnectAttempts: 10,
		EventBufferSize:      1024,
	}
}

// Client 交易所会话。实现 exchange.ActionSender，解码的事件从 Events 通道流出。
type Client struct {
	cfg *Config

	conn   *websocket.Conn
	connMu sync.Mutex

	running   bool
	runningMu sync.RWMutex

	events chan exchange.Event

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}

	// 重连节流：软限速，避免对交易所反复冲击
	reconnectBucket   *ratelimit.TokenBucket
	reconnectAttempts int
	reconnectMu       sync.Mutex
}

func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:             cfg,
		events:          make(chan exchange.Event, cfg.EventBufferSize),
		ctx:             ctx,
		cancel:          cancel,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		reconnectBucket: ratelimit.NewTokenBucket(3, 0.2),
	}
}

// Events 返回解码后的事件通道。通道在会话结束后关闭。
func (c *Client) Events() <-chan exchange.Event {
	return c.events
}

// Start 建立连接、登录，然后启动读取和心跳循环。
func (c *Client) Start(ctx context.Context) error {
	c.runningMu.Lock()
	if c.running {
		c.runningMu.Unlock()
		return errors.New("会话已在运行")
	}
	c.running = true
	c.runningMu.Unlock()

	if ctx != nil {
		c.ctx = ctx
	}

	if err := c.connect(); err != nil {
		c.runningMu.Lock()
		c.running = false
		c.runningMu.Unlock()
		return errors.Wrap(err, "初始连接失败")
	}

	go c.readLoop()
	go c.pingLoop()

	log.Infof("已连接到 %s", c.cfg.URL)
	return nil
}

// Stop 关闭会话。阻塞直到读取循环退出或超时。
func (c *Client) Stop() {
	c.runningMu.Lock()
	if !c.running {
		c.runningMu.Unlock()
		return
	}
	c.running = false
	c.runningMu.Unlock()

	c.cancel()
	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	select {
	case <-c.doneCh:
	case <-time.After(5 * time.Second):
		log.Warn("关闭超时")
	}
}

// Send 把指令编码为 JSON 帧写入连接。实现 exchange.ActionSender。
func (c *Client) Send(a exchange.Action) error {
	var frame interface{}
	switch act := a.(type) {
	case exchange.InsertAction:
		// 下单只针对 ETF，期货腿由交易所代为对冲
		frame = insertFrame{
			Type:       frameInsert,
			OrderID:    act.OrderID,
			Instrument: int(exchange.ETF),
			Side:       int(act.Side),
			Price:      act.Price,
			Volume:     act.Volume,
			Lifespan:   int(act.Lifespan),
		}
	case exchange.CancelAction:
		frame = cancelFrame{Type: frameCancel, OrderID: act.OrderID}
	case exchange.AmendAction:
		frame = amendFrame{Type: frameAmend, OrderID: act.OrderID, Volume: act.Volume}
	default:
		return errors.Errorf("未知指令类型: %T", a)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errors.New("未连接")
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return errors.Wrap(err, "发送指令失败")
	}
	return nil
}

func (c *Client) connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	headers := make(http.Header)
	headers.Set("User-Agent", "autotrader/1.0")

	conn, _, err := dialer.Dial(c.cfg.URL, headers)
	if err != nil {
		return errors.Wrap(err, "拨号失败")
	}

	// 登录必须是连接后的第一帧
	login := loginFrame{Type: frameLogin, Name: c.cfg.TraderName, Secret: c.cfg.Secret}
	if err := conn.WriteJSON(login); err != nil {
		conn.Close()
		return errors.Wrap(err, "发送登录帧失败")
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	var ack loginAckFrame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return errors.Wrap(err, "读取登录回应失败")
	}
	conn.SetReadDeadline(time.Time{})
	if ack.Type != frameLoginAck || !ack.OK {
		conn.Close()
		return errors.Errorf("登录被拒绝: %s", ack.Message)
	}

	c.conn = conn
	c.reconnectMu.Lock()
	c.reconnectAttempts = 0
	c.reconnectMu.Unlock()
	return nil
}

func (c *Client) readLoop() {
	defer close(c.doneCh)
	defer close(c.events)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("连接正常关闭")
				c.emit(exchange.DisconnectEvent{Reason: "服务器关闭连接"})
				return
			}
			log.Warnf("读取错误: %v, 准备重连", err)
			if !c.reconnect() {
				c.emit(exchange.DisconnectEvent{Reason: err.Error()})
				return
			}
			continue
		}

		c.handleFrame(data)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warnf("心跳发送失败: %v", err)
			}
		}
	}
}

// reconnect 指数退避重连。返回 false 表示放弃。
func (c *Client) reconnect() bool {
	c.reconnectMu.Lock()
	c.reconnectAttempts++
	attempts := c.reconnectAttempts
	c.reconnectMu.Unlock()

	if attempts > c.cfg.MaxReconnectAttempts {
		log.Errorf("达到最大重连次数 (%d)，放弃", c.cfg.MaxReconnectAttempts)
		return false
	}

	delay := c.cfg.ReconnectDelay * time.Duration(attempts)
	if delay > c.cfg.MaxReconnectDelay {
		delay = c.cfg.MaxReconnectDelay
	}
	if !c.reconnectBucket.Allow() {
		delay = c.cfg.MaxReconnectDelay
	}

	log.Infof("%v 后重连 (尝试 %d/%d)...", delay, attempts, c.cfg.MaxReconnectAttempts)

	select {
	case <-c.ctx.Done():
		return false
	case <-c.stopCh:
		return false
	case <-time.After(delay):
	}

	if err := c.connect(); err != nil {
		log.Warnf("重连失败: %v", err)
		return true // 下一轮继续尝试
	}
	return true
}

func (c *Client) handleFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warnf("解析帧失败: %v", err)
		return
	}

	switch env.Type {
	case frameBookUpdate:
		var f bookUpdateFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warnf("解析行情帧失败: %v", err)
			return
		}
		c.emit(f.toEvent())
	case frameFill:
		var f fillFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warnf("解析成交帧失败: %v", err)
			return
		}
		c.emit(f.toEvent())
	case frameOrderStatus:
		var f orderStatusFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warnf("解析状态帧失败: %v", err)
			return
		}
		c.emit(exchange.OrderStatusEvent{
			OrderID:         f.OrderID,
			FillVolume:      f.FillVolume,
			RemainingVolume: f.RemainingVolume,
			Fees:            f.Fees,
		})
	case frameTradeTicks:
		var f tradeTicksFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warnf("解析逐笔帧失败: %v", err)
			return
		}
		c.emit(f.toEvent())
	case frameError:
		var f errorFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warnf("解析错误帧失败: %v", err)
			return
		}
		c.emit(exchange.ErrorEvent{OrderID: f.OrderID, Message: f.Message})
	default:
		log.Debugf("忽略未知帧类型: %s", env.Type)
	}
}

func (c *Client) emit(ev exchange.Event) {
	select {
	case c.events <- ev:
	default:
		log.Warnf("事件通道已满，丢弃 %T", ev)
	}
}
