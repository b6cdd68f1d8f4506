package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/quotekit/autotrader/internal/config"
	"github.com/quotekit/autotrader/internal/controlplane"
	"github.com/quotekit/autotrader/internal/dashboard"
	"github.com/quotekit/autotrader/internal/engine"
	"github.com/quotekit/autotrader/internal/exchange/ws"
	"github.com/quotekit/autotrader/internal/journal"
	"github.com/quotekit/autotrader/internal/quote"
	"github.com/quotekit/autotrader/internal/risk"
	"github.com/quotekit/autotrader/pkg/logger"
	"github.com/quotekit/autotrader/pkg/ratelimit"
	"github.com/quotekit/autotrader/pkg/shutdown"
)

func main() {
	var (
		configPath = flag.String("config", "autotrader.yaml", "配置文件路径")
		envFile    = flag.String("env", ".env", "环境变量文件（不存在时忽略）")
		withTUI    = flag.Bool("dashboard", false, "启用终端看板")
	)
	flag.Parse()

	// .env 先于配置加载，环境变量覆盖才能生效
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "加载环境变量文件失败: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *withTUI {
		cfg.EnableDashboard = true
	}
	if cfg.ExchangeURL == "" {
		fmt.Fprintln(os.Stderr, "缺少 exchangeURL（或 AUTOTRADER_EXCHANGE_URL）")
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if cfg.EnableDashboard && logFile == "" {
		// 看板接管终端，日志必须落盘
		logFile = "logs/autotrader.log"
	}
	logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: logFile})
	log := logrus.WithField("component", "main")

	if err := run(cfg, log); err != nil && err != context.Canceled {
		log.WithError(err).Error("会话异常结束")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var jnl *journal.Journal
	if cfg.JournalDir != "" {
		j, err := journal.Open(cfg.JournalDir)
		if err != nil {
			return err
		}
		jnl = j
		log.WithField("session", jnl.Session()).Info("journal 已开启")
	}

	session := ws.NewClient(&ws.Config{
		URL:                  cfg.ExchangeURL,
		TraderName:           cfg.TraderName,
		Secret:               cfg.Secret,
		HandshakeTimeout:     10 * time.Second,
		PingInterval:         15 * time.Second,
		ReconnectDelay:       time.Second,
		MaxReconnectDelay:    30 * time.Second,
		MaxReconnectAttempts: 10,
		EventBufferSize:      cfg.EventBuffer,
	})

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
		Breaker: risk.CircuitBreakerConfig{
			MaxConsecutiveRejects: cfg.MaxConsecutiveRejects,
			SessionLossLimitCents: cfg.SessionLossLimitCents,
		},
		HedgeWindow: cfg.HedgeWindow(),
		Sender:      session,
		Journal:     jnl,
		EventBuffer: cfg.EventBuffer,
	})

	if err := session.Start(ctx); err != nil {
		return err
	}

	// 会话事件串行搬运到引擎。会话通道关闭即宣告引擎收尾。
	go func() {
		sink := eng.Events()
		for ev := range session.Events() {
			sink <- ev
		}
		close(sink)
	}()

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx)
	}()

	var cp *controlplane.Server
	if cfg.ControlPlaneAddr != "" {
		cp = controlplane.New(cfg.ControlPlaneAddr, eng)
		cp.Start()
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) {
		session.Stop()
	})
	if cp != nil {
		mgr.OnShutdown(func(ctx context.Context) {
			if err := cp.Shutdown(ctx); err != nil {
				log.WithError(err).Warn("运维面关闭失败")
			}
		})
	}

	if cfg.EnableDashboard {
		// 看板占据主 goroutine；退出即触发整体收尾
		go func() {
			if err := dashboard.Run(eng); err != nil {
				log.WithError(err).Warn("看板退出")
			}
			stop()
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("收到退出信号")
	case runErr = <-engineDone:
		engineDone = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(shutdownCtx)

	if engineDone != nil {
		select {
		case runErr = <-engineDone:
		case <-shutdownCtx.Done():
			log.Warn("等待引擎收尾超时")
		}
	}

	if jnl != nil {
		if err := jnl.Close(); err != nil {
			log.WithError(err).Warn("journal 关闭失败")
		}
	}
	return runErr
}
