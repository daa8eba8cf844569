package wiremsg

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// stopReader wraps a connection so that a blocked read observes the shared
// stop signal: each read runs under a bounded deadline and is retried while
// no data has arrived, failing with ErrStopped once the signal is set.
type stopReader struct {
	conn         net.Conn
	stopped      func() bool
	pollInterval time.Duration
}

func (r *stopReader) Read(p []byte) (int, error) {
	for {
		if r.stopped() {
			return 0, ErrStopped
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(r.pollInterval))

		n, err := r.conn.Read(p)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if n > 0 {
					// Partial data before the deadline; let the caller
					// consume it and come back for the rest.
					return n, nil
				}
				continue
			}
		}
		return n, err
	}
}

// conn owns the reader and writer tasks for one TCP connection. Messages
// move by value: decoded ones are handed to the delivery callback, outgoing
// ones arrive over the send queue. Closing the queue ends the writer task;
// the stop signal, peer close or an I/O failure ends the reader task.
type conn struct {
	raw    *net.TCPConn
	addr   string // remote address
	role   string // "server" or "client", for logs
	format *MessageFormat
	opts   options

	sendq   chan Message
	stopped func() bool
}

// run starts both tasks and blocks until they end, then closes the socket.
func (c *conn) run() error {
	c.opts.logger.Info("connection established", "role", c.role, "addr", c.addr)

	var group errgroup.Group
	group.Go(c.readLoop)
	group.Go(c.writeLoop)

	err := group.Wait()
	_ = c.raw.Close()

	c.opts.logger.Info("connection closed", "role", c.role, "addr", c.addr)
	return err
}

// readLoop decodes one message at a time off the socket and delivers each.
// Peer close, connection reset and cooperative stop end the loop cleanly.
// Decode-level failures are logged and the loop continues (the field's bytes
// were consumed, so the stream stays aligned); other I/O failures are logged
// and end the loop.
func (c *conn) readLoop() error {
	decoder := NewDecoder(c.format, &stopReader{
		conn:         c.raw,
		stopped:      c.stopped,
		pollInterval: c.opts.pollInterval,
	})

	for {
		msg, err := decoder.Decode()
		switch {
		case err == nil:
			c.opts.logger.Debug("message decoded", "role", c.role, "addr", c.addr)
			c.opts.onMessage(c.addr, msg)

		case errors.Is(err, ErrStopped):
			return nil

		case errors.Is(err, io.EOF), errors.Is(err, ErrEndOfData), peerGone(err):
			c.opts.logger.Info("peer disconnected", "role", c.role, "addr", c.addr)
			return nil

		case isIOError(err):
			c.opts.logger.Warn("read failed", "role", c.role, "addr", c.addr, "error", err)
			return err

		default:
			c.opts.logger.Warn("failed to decode message", "role", c.role, "addr", c.addr, "error", err)
		}
	}
}

// writeLoop encodes queued messages directly onto the socket, in enqueue
// order, until the queue is closed or a write fails. Messages queued before
// the endpoint stopped are drained, not dropped.
func (c *conn) writeLoop() error {
	encoder := NewEncoder(c.format, c.raw)

	for msg := range c.sendq {
		if err := encoder.Encode(msg); err != nil {
			if isIOError(err) {
				c.opts.logger.Warn("write failed", "role", c.role, "addr", c.addr, "error", err)
				return err
			}
			// Encode-level failure: the message never touched the socket.
			c.opts.logger.Warn("failed to encode message", "role", c.role, "addr", c.addr, "error", err)
			continue
		}
		c.opts.logger.Debug("message sent", "role", c.role, "addr", c.addr)
	}

	return nil
}

// peerGone reports whether the error means the remote end went away.
func peerGone(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}

// isIOError reports whether the error came from the socket rather than the
// codec.
func isIOError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, net.ErrClosed)
}
