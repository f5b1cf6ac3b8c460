package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClientClosed   = errors.New("client closed")
	ErrServerShutdown = errors.New("server shutting down")
)

// Client owns one websocket. Frames are read on the caller's goroutine while
// writes go through a bounded FIFO queue drained by the client's own writer,
// so a slow socket never stalls a broadcast.
type Client struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	send         chan []byte
	writeTimeout time.Duration
	pingPeriod   time.Duration
	ctx          context.Context
	cancel       context.CancelCauseFunc
	readCtx      context.Context
	stopRead     context.CancelFunc
	closeOnce    sync.Once
	done         chan struct{}
}

func NewClient(ctx context.Context, conn *websocket.Conn, logger *slog.Logger, opts Options) *Client {
	opts = opts.withDefaults()
	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	readCtx, stopRead := context.WithCancel(context.Background())
	return &Client{
		conn:         conn,
		logger:       logger,
		send:         make(chan []byte, opts.SendBufferSize),
		writeTimeout: opts.WriteTimeout,
		pingPeriod:   opts.PingPeriod,
		ctx:          ctx,
		cancel:       cancel,
		readCtx:      readCtx,
		stopRead:     stopRead,
		done:         make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (c *Client) Start() {
	go c.writePump()
}

// Read blocks for the next frame until the socket is closed. Once the client
// is torn down the returned error wraps the reason it was torn down.
func (c *Client) Read() ([]byte, error) {
	_, data, err := c.conn.Read(c.readCtx)
	if err != nil {
		if cause := context.Cause(c.ctx); cause != nil {
			return nil, fmt.Errorf("%w: %w", cause, err)
		}
		return nil, err
	}
	return data, nil
}

// Send queues data without blocking. A full queue means the peer cannot keep
// up; the client is then torn down and its session unwinds.
func (c *Client) Send(data []byte) error {
	if c.ctx.Err() != nil {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.cancel(ErrSendBufferFull)
		go c.Close()
		return ErrSendBufferFull
	}
}

// Close stops the writer and closes the socket with a status telling the
// peer why. It is safe to call from any goroutine and more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		code, reason := closeStatus(context.Cause(c.ctx))
		c.cancel(ErrClientClosed)
		<-c.done
		err = c.conn.Close(code, reason)
		c.stopRead()
	})
	return err
}

func closeStatus(cause error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(cause, ErrSendBufferFull):
		return websocket.StatusPolicyViolation, "too slow"
	case errors.Is(cause, ErrServerShutdown):
		return websocket.StatusGoingAway, "server shutting down"
	}
	return websocket.StatusNormalClosure, "bye"
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.logger.Warn("failed to write message", "error", err)
				c.cancel(fmt.Errorf("writing message: %w", err))
				go c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.logger.Debug("failed to ping client", "error", err)
				c.cancel(fmt.Errorf("ping: %w", err))
				go c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) write(data []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) ping() error {
	ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()
	return c.conn.Ping(ctx)
}
