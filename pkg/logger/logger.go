// Package logger 全局日志：logrus 输出 + lumberjack 轮转。
//
// 核心组件自己拿 logrus.WithField("component", ...) 的入口，
// 这里只负责一次性初始化（级别、格式、文件轮转）。
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志实例（logrus 标准实例，包级入口都会走它）。
var Logger = logrus.StandardLogger()

// Config 日志配置
type Config struct {
	Level      string // 日志级别: debug, info, warn, error
	OutputFile string // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize    int    // 日志文件最大大小（MB）
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留旧日志文件的天数
	Compress   bool   // 是否压缩旧日志文件
}

// Init 初始化全局日志。重复调用以最后一次为准。
func Init(cfg Config) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if cfg.OutputFile == "" {
		Logger.SetOutput(os.Stdout)
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.OutputFile,
		MaxSize:    orDefault(cfg.MaxSize, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAge, 14),
		Compress:   cfg.Compress,
	}
	Logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Info 包级便捷入口（与旧代码兼容）。
func Info(args ...interface{}) { Logger.Info(args...) }

// Infof 格式化输出。
func Infof(format string, args ...interface{}) { Logger.Infof(format, args...) }

// Warnf 格式化输出。
func Warnf(format string, args ...interface{}) { Logger.Warnf(format, args...) }

// Errorf 格式化输出。
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
