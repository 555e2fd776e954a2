// Package logger 提供全局分级日志，供各子系统以 printf 风格调用。
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type level int32

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var (
	current atomic.Int32
	std     = log.New(os.Stderr, "", log.LstdFlags|log.Lmsgprefix)
)

func init() {
	current.Store(int32(levelInfo))
}

// SetLevel 设置全局日志级别：debug/info/warn/error，未知值回落到 info。
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		current.Store(int32(levelDebug))
	case "info", "":
		current.Store(int32(levelInfo))
	case "warn", "warning":
		current.Store(int32(levelWarn))
	case "error":
		current.Store(int32(levelError))
	default:
		current.Store(int32(levelInfo))
	}
}

func enabled(l level) bool {
	return int32(l) >= current.Load()
}

func output(prefix, format string, args ...any) {
	std.Output(3, prefix+" "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	if !enabled(levelDebug) {
		return
	}
	output("DEBUG", format, args...)
}

func Infof(format string, args ...any) {
	if !enabled(levelInfo) {
		return
	}
	output("INFO", format, args...)
}

func Warnf(format string, args ...any) {
	if !enabled(levelWarn) {
		return
	}
	output("WARN", format, args...)
}

func Errorf(format string, args ...any) {
	if !enabled(levelError) {
		return
	}
	output("ERROR", format, args...)
}
