package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu        sync.RWMutex
	debugMode = false
	format    = "console"
	output    io.Writer = os.Stdout
	base                = build()
)

func build() zerolog.Logger {
	var w io.Writer = output
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: output, TimeFormat: time.DateTime, NoColor: true}
	}
	level := zerolog.InfoLevel
	if debugMode {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func update(apply func()) {
	mu.Lock()
	defer mu.Unlock()
	apply()
	base = build()
}

// SetDebug 设置是否开启调试模式
func SetDebug(debug bool) {
	update(func() { debugMode = debug })
}

// SetFormat 设置输出格式: "json" 或 "console"
func SetFormat(f string) {
	if f != "json" {
		f = "console"
	}
	update(func() { format = f })
}

// SetOutput 重定向日志输出，主要用于测试
func SetOutput(w io.Writer) {
	update(func() { output = w })
}

// L 返回当前的 zerolog.Logger，用于结构化日志
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

// With 创建带固定字段的子 logger
func With() zerolog.Context {
	return L().With()
}

// Info 打印信息日志
func Info(format string, v ...interface{}) {
	L().Info().Msgf(format, v...)
}

// Debug 打印调试日志
func Debug(format string, v ...interface{}) {
	L().Debug().Msgf(format, v...)
}

// Warn 打印告警日志
func Warn(format string, v ...interface{}) {
	L().Warn().Msgf(format, v...)
}

// Error 打印错误日志
func Error(format string, v ...interface{}) {
	L().Error().Msgf(format, v...)
}

// Fatal 打印错误日志并退出
func Fatal(format string, v ...interface{}) {
	L().Fatal().Msgf(format, v...)
}
