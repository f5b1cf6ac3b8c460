package ws

import "time"

const (
	// sendChannelSize controls the max number
	// of messages that can be queued for a client.
	sendChannelSize     = 16
	defaultWriteTimeout = 10 * time.Second
	pingPeriod          = (60 * 9 * time.Second) / 10
	// maxMessageSize matches the websocket library's own read limit.
	maxMessageSize      = 32 << 10
)

type Options struct {
	SendBufferSize int
	WriteTimeout   time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	TypingWindow   time.Duration
	// Clock stamps chat and system envelopes and drives typing expiry.
	Clock func() time.Time
}

func DefaultOptions() Options {
	return Options{
		SendBufferSize: sendChannelSize,
		WriteTimeout:   defaultWriteTimeout,
		PingPeriod:     pingPeriod,
		MaxMessageSize: maxMessageSize,
		TypingWindow:   time.Second,
		Clock:          time.Now,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = def.SendBufferSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = def.PingPeriod
	}
	if o.TypingWindow <= 0 {
		o.TypingWindow = def.TypingWindow
	}
	if o.Clock == nil {
		o.Clock = def.Clock
	}
	return o
}
