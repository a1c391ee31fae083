package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"cdr-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// One payload per connection; the PBX sends a single line and waits for
// the ack, so a bounded single read is the whole protocol.
const readBufferSize = 1024

// SupervisorConfig controls the TCP side of the gateway.
type SupervisorConfig struct {
	// Host to bind listeners on; empty binds all interfaces.
	Host string

	// DefaultPort serves companies without a dedicated listening port.
	DefaultPort int

	// ReadTimeout bounds the single inbound read so a stalled PBX
	// connection cannot pin a handler goroutine forever.
	ReadTimeout time.Duration

	// MaxConcurrentPerPort caps simultaneous handlers per listening port
	// via the shared redis counter. Zero disables the cap.
	MaxConcurrentPerPort int
	ConcurrencyCapTTL    time.Duration
}

func (c SupervisorConfig) withDefaults() SupervisorConfig {
	out := c
	if out.DefaultPort <= 0 {
		out.DefaultPort = 5000
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 30 * time.Second
	}
	if out.ConcurrencyCapTTL <= 0 {
		out.ConcurrencyCapTTL = time.Minute
	}
	return out
}

// Supervisor owns one TCP listener per company listening port plus the
// default port. Listeners live for the process lifetime unless a port is
// removed when a company is reconfigured.
type Supervisor struct {
	gateway *Gateway
	rdb     *redis.Client
	log     *slog.Logger
	cfg     SupervisorConfig

	mu        sync.Mutex
	listeners map[int]net.Listener
	closed    bool

	wg sync.WaitGroup
}

func NewSupervisor(gateway *Gateway, rdb *redis.Client, log *slog.Logger, cfg SupervisorConfig) *Supervisor {
	return &Supervisor{
		gateway:   gateway,
		rdb:       rdb,
		log:       log,
		cfg:       cfg.withDefaults(),
		listeners: make(map[int]net.Listener),
	}
}

// Start boots listeners for every configured company port and the default
// port. Ports that fail to bind are logged and skipped so one stale
// configuration row cannot keep every other tenant offline.
func (s *Supervisor) Start(ports []int) error {
	if err := s.AddPort(s.cfg.DefaultPort); err != nil {
		return fmt.Errorf("bind default port %d: %w", s.cfg.DefaultPort, err)
	}
	for _, port := range ports {
		if port == s.cfg.DefaultPort {
			continue
		}
		if err := s.AddPort(port); err != nil {
			s.log.Error("skipping company listener", "port", port, "err", err)
		}
	}
	return nil
}

// AddPort binds a listener for a newly configured company port.
// Adding a port that is already served is a no-op.
func (s *Supervisor) AddPort(port int) error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d", port)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("supervisor is closed")
	}
	if _, ok := s.listeners[port]; ok {
		return nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, port))
	if err != nil {
		return err
	}
	s.listeners[port] = ln

	s.wg.Add(1)
	go s.serve(ln, port)

	s.log.Info("CDR listener started", "addr", ln.Addr().String(), "port", port)
	return nil
}

// RemovePort stops serving a port. In-flight handlers finish their one
// exchange; only the accept loop stops.
func (s *Supervisor) RemovePort(port int) error {
	s.mu.Lock()
	ln, ok := s.listeners[port]
	if ok {
		delete(s.listeners, port)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.log.Info("CDR listener stopped", "port", port)
	return ln.Close()
}

// Ports reports the ports currently being served.
func (s *Supervisor) Ports() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.listeners))
	for port := range s.listeners {
		out = append(out, port)
	}
	return out
}

// Close stops all listeners and waits for in-flight handlers.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.closed = true
	for port, ln := range s.listeners {
		_ = ln.Close()
		delete(s.listeners, port)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Supervisor) serve(ln net.Listener, port int) {
	defer s.wg.Done()
	defer s.forget(port, ln)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Transient accept failures (fd exhaustion and the like)
			// recover; keep the feed alive instead of dropping the port.
			if backoff < 5*time.Millisecond {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.log.Error("accept failed, retrying", "port", port, "err", err, "backoff", backoff.String())
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn, port)
		}()
	}
}

// forget drops the listener entry once its accept loop exits, so AddPort
// can rebind the port later. The identity check keeps a replacement
// listener that AddPort already bound intact.
func (s *Supervisor) forget(port int, ln net.Listener) {
	s.mu.Lock()
	if cur, ok := s.listeners[port]; ok && cur == ln {
		delete(s.listeners, port)
	}
	s.mu.Unlock()
}

// handleConn performs the one read/one write exchange. Any failure is
// reported back to the PBX as an error string; the listener never sees it.
func (s *Supervisor) handleConn(conn net.Conn, port int) {
	defer conn.Close()
	ctx := context.Background()

	if s.rdb != nil && s.cfg.MaxConcurrentPerPort > 0 {
		key := fmt.Sprintf("cdr:ingest:cap:%d", port)
		ok, err := utils.AcquireConcurrencyCap(ctx, s.rdb, key, s.cfg.MaxConcurrentPerPort, s.cfg.ConcurrencyCapTTL)
		if err != nil {
			// Redis trouble must not drop PBX traffic; proceed uncapped.
			s.log.Warn("concurrency cap check failed", "port", port, "err", err)
		} else if !ok {
			s.log.Warn("rejecting connection over concurrency cap", "port", port, "remote", conn.RemoteAddr().String())
			s.reply(conn, "Error processing CDR: too many concurrent connections")
			return
		} else {
			defer func() {
				if err := utils.ReleaseConcurrencyCap(ctx, s.rdb, key); err != nil {
					s.log.Warn("concurrency cap release failed", "port", port, "err", err)
				}
			}()
		}
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		s.log.Warn("set read deadline failed", "port", port, "err", err)
	}

	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		s.log.Warn("read failed", "port", port, "remote", conn.RemoteAddr().String(), "err", err)
		s.reply(conn, "Error processing CDR: empty payload")
		return
	}
	payload := strings.TrimSpace(string(buf[:n]))

	if _, err := s.gateway.Submit(ctx, port, payload); err != nil {
		s.reply(conn, fmt.Sprintf("Error processing CDR: %v", err))
		return
	}
	s.reply(conn, AckMessage)
}

func (s *Supervisor) reply(conn net.Conn, msg string) {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte(msg)); err != nil {
		s.log.Warn("reply write failed", "remote", conn.RemoteAddr().String(), "err", err)
	}
}
