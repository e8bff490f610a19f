package pipeline

import (
	"github.com/jonesrussell/north-cloud/problemsync/infrastructure/logger"
)

// Sink receives progress reports.
type Sink interface {
	Report(message string, current, total int)
}

// LogSink writes progress to a logger at info level.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: logger.Component(log, "progress")}
}

func (s *LogSink) Report(message string, current, total int) {
	s.log.Info(message, logger.Int("current", current), logger.Int("total", total))
}

// MultiSink fans reports out to several sinks.
type MultiSink []Sink

func (m MultiSink) Report(message string, current, total int) {
	for _, s := range m {
		s.Report(message, current, total)
	}
}

type nopSink struct{}

func (nopSink) Report(string, int, int) {}
