package wiremsg

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Server is a listening endpoint that exchanges messages of one format with
// any number of connected clients. Every connection gets its own reader and
// writer task; outgoing messages are addressed by the peer's remote address.
//
// A Server moves between exactly two states: idle and running. Run starts
// the background tasks, Stop sets the shared stop signal, closes every send
// queue and blocks until all tasks have ended.
type Server struct {
	format *MessageFormat
	opts   options

	stop atomic.Bool

	mu         sync.Mutex
	running    bool
	listenAddr string
	queues     map[string]chan Message

	group *errgroup.Group
}

// NewServer creates a server for the given message format. The format must
// outlive the server; it is shared read-only by every connection.
func NewServer(format *MessageFormat, opt ...Option) *Server {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	return &Server{
		format: format,
		opts:   opts,
		queues: make(map[string]chan Message),
	}
}

// Run binds a listening socket and starts the accept task. An empty address
// listens on 127.0.0.1 with an OS-chosen ephemeral port. It returns the
// concrete bound address.
func (s *Server) Run(listenAddr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return "", ErrAlreadyRunning
	}

	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}
	addrPort, err := netip.ParseAddrPort(listenAddr)
	if err != nil {
		return "", &AddrParseError{Addr: listenAddr, Err: err}
	}

	listener, err := net.ListenTCP("tcp4", net.TCPAddrFromAddrPort(addrPort))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "listen on %s", listenAddr)
	}

	s.stop.Store(false)
	s.running = true
	s.listenAddr = listener.Addr().String()

	s.group = new(errgroup.Group)
	s.group.Go(func() error {
		return s.acceptLoop(listener)
	})

	s.opts.logger.Info("server started", "listen_addr", s.listenAddr)
	return s.listenAddr, nil
}

// acceptLoop polls the listener under a bounded deadline so the stop signal
// is observed between accepts. Each accepted connection gets a send queue,
// registered under the peer's address, and a reader/writer task pair. A
// listener error other than a deadline timeout ends the loop.
func (s *Server) acceptLoop(listener *net.TCPListener) error {
	conns := new(errgroup.Group)
	defer func() {
		_ = conns.Wait()
		_ = listener.Close()
		s.opts.logger.Info("server stopped", "listen_addr", listener.Addr().String())
	}()

	for {
		if s.stop.Load() {
			return nil
		}

		_ = listener.SetDeadline(time.Now().Add(s.opts.pollInterval))

		raw, err := listener.AcceptTCP()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.stop.Load() {
				return nil
			}
			s.opts.logger.Error("accept failed", "error", err)
			return err
		}

		_ = raw.SetNoDelay(true)
		addr := raw.RemoteAddr().String()

		queue := make(chan Message, s.opts.queueSize)
		c := &conn{
			raw:     raw,
			addr:    addr,
			role:    "server",
			format:  s.format,
			opts:    s.opts,
			sendq:   queue,
			stopped: s.stop.Load,
		}
		conns.Go(c.run)

		s.mu.Lock()
		if s.stop.Load() {
			// Stopped while accepting: the queue was never registered, so
			// Stop cannot close it. Close it here to end the writer task.
			s.mu.Unlock()
			close(queue)
			continue
		}
		s.queues[addr] = queue
		s.mu.Unlock()
	}
}

// Stop sets the stop signal, closes every registered send queue and waits
// for the accept task and all connection tasks to end. It is synchronous:
// when it returns, no background task is left. Stopping a server that is not
// running returns ErrNotRunning.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}

	s.running = false
	s.listenAddr = ""
	s.stop.Store(true)

	for _, queue := range s.queues {
		close(queue)
	}
	s.queues = make(map[string]chan Message)

	group := s.group
	s.group = nil
	s.mu.Unlock()

	return group.Wait()
}

// SendMsg queues a message for the client connected from addr. It fails with
// NoSuchClientError if no such peer is registered and with ErrBufferFull if
// the peer's queue is full; in both cases nothing was queued.
func (s *Server) SendMsg(addr string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[addr]
	if !ok {
		return &NoSuchClientError{Addr: addr}
	}

	select {
	case queue <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// ClientLen returns the number of currently registered client connections.
func (s *Server) ClientLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// ListenAddr returns the concrete bound address, or the empty string when
// the server is not running.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}
