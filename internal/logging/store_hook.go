package logging

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// LogSink appends diagnostic entries. The repbook backend implements it.
type LogSink interface {
	AddLog(l *types.Log) error
}

// StoreHook is a logrus hook that copies entries into a LogSink. Entries are
// handed to a background writer so a log call made while the store holds
// its own lock cannot deadlock; when the queue is full the entry is dropped
// and counted.
type StoreHook struct {
	sink    LogSink
	levels  []logrus.Level
	queue   chan *types.Log
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewStoreHook starts a hook writing entries at levels to sink. With no
// levels it records warnings and above.
func NewStoreHook(sink LogSink, levels ...logrus.Level) *StoreHook {
	if len(levels) == 0 {
		levels = []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
		}
	}
	h := &StoreHook{
		sink:   sink,
		levels: levels,
		queue:  make(chan *types.Log, 128),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *StoreHook) Levels() []logrus.Level {
	return h.levels
}

func (h *StoreHook) Fire(entry *logrus.Entry) error {
	l := EntryToLog(entry)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return nil
	}
	select {
	case h.queue <- l:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// Dropped returns the number of entries discarded because the queue was
// full.
func (h *StoreHook) Dropped() int64 {
	return h.dropped.Load()
}

// Close stops accepting entries, writes the queued ones, and waits for the
// writer to finish. Entries fired after Close are dropped.
func (h *StoreHook) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()
	<-h.done
}

func (h *StoreHook) run() {
	defer close(h.done)
	for l := range h.queue {
		// The sink error cannot be logged without re-entering the hook.
		_ = h.sink.AddLog(l)
	}
}

// EntryToLog converts a logrus entry into a diagnostic log entry. The error
// field becomes ErrorMessage and the remaining fields become Details.
func EntryToLog(entry *logrus.Entry) *types.Log {
	l := &types.Log{
		Timestamp: entry.Time.UnixMilli(),
		LogLevel:  levelFor(entry.Level),
		Label:     entry.Message,
	}
	if l.Timestamp <= 0 {
		l.Timestamp = types.NowMillis()
	}
	details := make(map[string]any, len(entry.Data))
	for k, v := range entry.Data {
		if k == logrus.ErrorKey {
			if err, ok := v.(error); ok {
				l.ErrorMessage = err.Error()
			} else {
				l.ErrorMessage = fmt.Sprint(v)
			}
			continue
		}
		details[k] = v
	}
	if len(details) > 0 {
		l.Details = details
	}
	return l
}

func levelFor(lvl logrus.Level) types.LogLevel {
	switch lvl {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return types.LogError
	case logrus.WarnLevel:
		return types.LogWarn
	case logrus.InfoLevel:
		return types.LogInfo
	default:
		return types.LogDebug
	}
}
