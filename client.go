package wiremsg

import (
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Client is a connecting endpoint that exchanges messages of one format with
// a single server. Like the server side it runs one reader and one writer
// task; SendMsg queues onto the connection's send queue.
type Client struct {
	format *MessageFormat
	opts   options

	stop atomic.Bool

	mu       sync.Mutex
	running  bool
	bindAddr string
	queue    chan Message

	group *errgroup.Group
}

// NewClient creates a client for the given message format. The format must
// outlive the client; it is shared read-only with the codec.
func NewClient(format *MessageFormat, opt ...Option) *Client {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	return &Client{
		format: format,
		opts:   opts,
	}
}

// Run connects to connectAddr and starts the reader and writer tasks. A
// non-empty bindAddr pins the local side of the connection; an empty one
// leaves the choice to the OS. It returns the concrete local address.
func (c *Client) Run(bindAddr, connectAddr string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return "", ErrAlreadyRunning
	}

	if _, err := netip.ParseAddrPort(connectAddr); err != nil {
		return "", &AddrParseError{Addr: connectAddr, Err: err}
	}

	var dialer net.Dialer
	if bindAddr != "" {
		addrPort, err := netip.ParseAddrPort(bindAddr)
		if err != nil {
			return "", &AddrParseError{Addr: bindAddr, Err: err}
		}
		dialer.LocalAddr = net.TCPAddrFromAddrPort(addrPort)
	}

	rawConn, err := dialer.Dial("tcp4", connectAddr)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "connect to %s", connectAddr)
	}
	raw := rawConn.(*net.TCPConn)
	_ = raw.SetNoDelay(true)

	c.stop.Store(false)
	c.running = true
	c.bindAddr = raw.LocalAddr().String()
	c.queue = make(chan Message, c.opts.queueSize)

	cn := &conn{
		raw:     raw,
		addr:    connectAddr,
		role:    "client",
		format:  c.format,
		opts:    c.opts,
		sendq:   c.queue,
		stopped: c.stop.Load,
	}

	c.group = new(errgroup.Group)
	c.group.Go(cn.run)

	c.opts.logger.Info("client started", "bind_addr", c.bindAddr, "connect_addr", connectAddr)
	return c.bindAddr, nil
}

// Stop sets the stop signal, closes the send queue and waits for the reader
// and writer tasks to end. Messages queued before the call are still written
// out. Stopping a client that is not running returns ErrNotRunning.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}

	c.running = false
	c.bindAddr = ""
	c.stop.Store(true)

	close(c.queue)
	c.queue = nil

	group := c.group
	c.group = nil
	c.mu.Unlock()

	return group.Wait()
}

// SendMsg queues a message for the server. It fails with ErrNotConnected
// when no connection is active and with ErrBufferFull when the queue cannot
// accept the message; in both cases nothing was queued.
func (c *Client) SendMsg(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.queue == nil {
		return ErrNotConnected
	}

	select {
	case c.queue <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// BindAddr returns the connection's concrete local address, or the empty
// string when the client is not running.
func (c *Client) BindAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindAddr
}
