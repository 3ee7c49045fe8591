package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ---------------------------------------------------------------------------
// seclog.go: asynchronous, per-severity security log.
//
// Callers on the request path only enqueue. A single writer goroutine appends
// each event to security-<severity>.log and then runs the registered
// handlers (event ring, NATS bus). The queue is bounded; when it is full the
// configured overflow policy decides what is lost:
//
//   drop_oldest  evict the oldest queued event and enqueue the new one
//   block        wait up to BlockTimeout for room, then drop the new event
// ---------------------------------------------------------------------------

// Sink receives security events from the validation engine.
type Sink interface {
	Log(clientKey, kind, details string, severity Severity)
}

// EventHandler is run by the writer goroutine for every persisted event.
type EventHandler func(event *SecurityEvent)

// SecurityLog is the file-backed Sink.
type SecurityLog struct {
	dir          string
	policy       string
	blockTimeout time.Duration
	logger       zerolog.Logger

	queue   chan *SecurityEvent
	closing chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once
	sendMu  sync.RWMutex // shared by Enqueue, exclusive in Close

	mu       sync.RWMutex
	handlers []EventHandler

	files map[Severity]*os.File // owned by the writer goroutine

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64

	dropWarn *rate.Limiter
}

// NewSecurityLog creates the log directory and starts the writer goroutine.
func NewSecurityLog(cfg SecurityLogConfig, logger zerolog.Logger) (*SecurityLog, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating security log dir %s: %w", cfg.Dir, err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	policy := cfg.Overflow
	if policy == "" {
		policy = OverflowDropOldest
	}
	if policy != OverflowDropOldest && policy != OverflowBlock {
		return nil, fmt.Errorf("unknown overflow policy %q", policy)
	}
	timeout := cfg.BlockTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}

	l := &SecurityLog{
		dir:          cfg.Dir,
		policy:       policy,
		blockTimeout: timeout,
		logger:       logger.With().Str("component", "security_log").Logger(),
		queue:        make(chan *SecurityEvent, size),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
		files:        make(map[Severity]*os.File),
		dropWarn:     rate.NewLimiter(rate.Every(time.Second), 1),
	}
	go l.run()
	return l, nil
}

// AddHandler registers a callback run after each event is written.
func (l *SecurityLog) AddHandler(h EventHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Log enqueues an event. It never performs file I/O on the caller's goroutine.
func (l *SecurityLog) Log(clientKey, kind, details string, severity Severity) {
	l.Enqueue(NewSecurityEvent(clientKey, kind, details, severity))
}

// Enqueue hands a prepared event to the writer according to the overflow policy.
func (l *SecurityLog) Enqueue(event *SecurityEvent) {
	l.sendMu.RLock()
	defer l.sendMu.RUnlock()
	if l.closed.Load() {
		l.drop(event)
		return
	}

	if l.policy == OverflowBlock {
		select {
		case l.queue <- event:
			return
		default:
		}
		timer := time.NewTimer(l.blockTimeout)
		defer timer.Stop()
		select {
		case l.queue <- event:
		case <-timer.C:
			l.drop(event)
		}
		return
	}

	for {
		select {
		case l.queue <- event:
			return
		default:
		}
		select {
		case old := <-l.queue:
			l.drop(old)
		default:
		}
	}
}

func (l *SecurityLog) drop(event *SecurityEvent) {
	n := l.dropped.Add(1)
	if l.dropWarn.Allow() {
		l.logger.Warn().
			Int64("dropped_total", n).
			Str("type", event.Type).
			Str("severity", event.Severity.String()).
			Msg("security log queue full, event dropped")
	}
}

func (l *SecurityLog) run() {
	defer close(l.done)
	for {
		select {
		case event := <-l.queue:
			l.write(event)
		case <-l.closing:
			for {
				select {
				case event := <-l.queue:
					l.write(event)
				default:
					l.closeFiles()
					return
				}
			}
		}
	}
}

func (l *SecurityLog) write(event *SecurityEvent) {
	f, err := l.file(event.Severity)
	if err == nil {
		_, err = f.WriteString(event.Line())
	}
	if err != nil {
		l.failed.Add(1)
		l.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to write security log")
	} else {
		l.written.Add(1)
	}

	l.mu.RLock()
	handlers := make([]EventHandler, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func (l *SecurityLog) file(sev Severity) (*os.File, error) {
	if f, ok := l.files[sev]; ok {
		return f, nil
	}
	f, err := os.OpenFile(l.Path(sev), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	l.files[sev] = f
	return f, nil
}

func (l *SecurityLog) closeFiles() {
	for sev, f := range l.files {
		if err := f.Close(); err != nil {
			l.logger.Error().Err(err).Str("severity", sev.String()).Msg("closing security log")
		}
		delete(l.files, sev)
	}
}

// Path returns the file that holds events of the given severity.
func (l *SecurityLog) Path(sev Severity) string {
	return filepath.Join(l.dir, FileName(sev))
}

// FileName returns the base name of the log file for a severity.
func FileName(sev Severity) string {
	return "security-" + sev.Stream() + ".log"
}

// Dir returns the log directory.
func (l *SecurityLog) Dir() string { return l.dir }

// Close stops accepting events, drains the queue and closes the files. Every
// Enqueue that started before Close is either written or counted as dropped.
func (l *SecurityLog) Close() error {
	l.once.Do(func() {
		l.sendMu.Lock()
		l.closed.Store(true)
		close(l.closing)
		l.sendMu.Unlock()
	})
	<-l.done
	return nil
}

// Stats returns queue and write counters.
func (l *SecurityLog) Stats() map[string]interface{} {
	return map[string]interface{}{
		"policy":  l.policy,
		"queued":  len(l.queue),
		"written": l.written.Load(),
		"dropped": l.dropped.Load(),
		"failed":  l.failed.Load(),
	}
}

// Dropped returns the number of events lost to the overflow policy.
func (l *SecurityLog) Dropped() int64 { return l.dropped.Load() }
