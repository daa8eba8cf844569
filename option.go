package wiremsg

import (
	"time"
)

// options holds the configuration shared by servers and clients.
type options struct {
	logger Logger

	// onMessage is called for every message a reader task decodes.
	// The remote address identifies the connection it arrived on.
	onMessage func(addr string, msg Message)

	queueSize    int           // capacity of each per-connection send queue
	pollInterval time.Duration // accept backoff and read-deadline window
}

// Option is a function that configures endpoint options.
type Option func(*options)

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// OnMessageOption returns an Option that sets the message delivery callback.
// If not set, received messages are logged at info level.
func OnMessageOption(cb func(addr string, msg Message)) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// QueueSizeOption returns an Option that sets the capacity of each
// per-connection send queue. A larger queue allows more messages to be
// buffered before SendMsg blocks.
func QueueSizeOption(size int) Option {
	return func(o *options) {
		o.queueSize = size
	}
}

// PollIntervalOption returns an Option that sets how long accept and read
// operations wait before re-checking the stop signal.
func PollIntervalOption(interval time.Duration) Option {
	return func(o *options) {
		o.pollInterval = interval
	}
}

// Default configuration values.
const (
	// defaultQueueSize is the default capacity of a send queue.
	defaultQueueSize = 16
	// defaultPollInterval is the default stop-signal polling window.
	defaultPollInterval = 500 * time.Millisecond
)

// checkOptions sets default values for endpoint options.
func checkOptions(opts *options) {
	if opts.queueSize <= 0 {
		opts.queueSize = defaultQueueSize
	}

	if opts.pollInterval <= 0 {
		opts.pollInterval = defaultPollInterval
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.onMessage == nil {
		logger := opts.logger
		opts.onMessage = func(addr string, msg Message) {
			logger.Info("message received", "addr", addr, "msg", msg)
		}
	}
}
