package logger

import (
	"fmt"
	"log/slog"
)

type Logger interface {
	Debug(log ...any)
	Error(log ...any)
}

type PrefixedLogger struct {
	Prefix string
}

func (pl PrefixedLogger) Debug(log ...any) {
	fmt.Println("[Prefix: "+pl.Prefix+"] Debug:", log)
}

func (pl PrefixedLogger) Error(log ...any) {
	fmt.Println("[Prefix: "+pl.Prefix+"] Error: ", log)
}

var _ Logger = &PrefixedLogger{}

// Slog adapts a structured logger to the Logger interface so newer
// services can be injected where the older interface is expected.
type Slog struct {
	Inner *slog.Logger
}

func (sl Slog) Debug(log ...any) {
	sl.Inner.Debug(fmt.Sprint(log...))
}

func (sl Slog) Error(log ...any) {
	sl.Inner.Error(fmt.Sprint(log...))
}

var _ Logger = &Slog{}
