// Package upstream owns the single long-lived connection type this module
// calls a "Connection": one session bound to one client identifier, dialing
// the upstream Gateway, translating inbound frames into typed
// internal/mailbox.Events, and accepting typed Commands to send. Adapted
// from the teacher's internal/wsconn/connection.go: the channel layout
// (sendCh/stopCh/doneCh), the read/write/health goroutine split, and the
// ping/pong staleness detection are kept; the generic byte-oriented message
// handler is replaced with a typed event sink, since the demultiplexer
// needs typed events, not raw frames.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ibgw/gateway/internal/mailbox"
)

// Config tunes one Session's dial/keepalive behavior. Defaults follow the
// upstream Gateway's documented socket behavior rather than the teacher's
// Dhan-tuned values.
type Config struct {
	Host string
	Port int

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	ReconnectDelay time.Duration

	ReadBufferSize  int
	WriteBufferSize int

	// PacingRate bounds outbound commands/sec, enforcing the upstream
	// Gateway's general pacing-violation limit.
	PacingRate rate.Limit
	PacingBurst int
}

// DefaultConfig returns Config tuned for an IB-Gateway-style upstream.
func DefaultConfig(host string, port int) Config {
	return Config{
		Host:            host,
		Port:            port,
		ConnectTimeout:  15 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    10 * time.Second,
		PongWait:        30 * time.Second,
		ReconnectDelay:  5 * time.Second,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		PacingRate:      45, // stay under the documented ~50 msg/sec limit
		PacingBurst:     10,
	}
}

// EventSink receives events decoded off the wire, in FIFO order per Session.
type EventSink func(mailbox.Event)

// Session is one upstream connection bound to a single clientId.
type Session struct {
	clientID int64
	cfg      Config
	log      zerolog.Logger
	onEvent  EventSink

	connMu sync.Mutex
	conn   *websocket.Conn

	sendCh chan Command
	stopCh chan struct{}
	doneCh chan struct{}

	stateMu   sync.Mutex
	connected bool

	lastPingMu sync.Mutex
	lastPing   time.Time
	lastPong   time.Time

	limiter       *rate.Limiter
	historyPacing *slidingWindowCounter
	metrics       *Metrics
	bufPool       *BufferPool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession constructs a Session for clientID. onEvent is invoked
// synchronously from the session's read loop; it must not block.
func NewSession(clientID int64, cfg Config, onEvent EventSink, log zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		clientID:      clientID,
		cfg:           cfg,
		log:           log.With().Int64("clientId", clientID).Logger(),
		onEvent:       onEvent,
		sendCh:        make(chan Command, 64),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		limiter:       rate.NewLimiter(cfg.PacingRate, cfg.PacingBurst),
		historyPacing: newSlidingWindowCounter(historicalDataPacingLimit, historicalDataPacingWindow),
		metrics:       &Metrics{},
		bufPool:       NewBufferPool(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// ClientID returns the clientId this session is bound to.
func (s *Session) ClientID() int64 { return s.clientID }

// Connect dials the upstream Gateway and starts the read/write/health
// loops. Safe to call again after a disconnect.
func (s *Session) Connect() error {
	u := url.URL{Scheme: "ws", Host: s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port), Path: "/v1/gateway"}

	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.ConnectTimeout,
		ReadBufferSize:   s.cfg.ReadBufferSize,
		WriteBufferSize:  s.cfg.WriteBufferSize,
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial upstream gateway: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.stateMu.Lock()
	s.connected = true
	s.stateMu.Unlock()

	s.lastPingMu.Lock()
	s.lastPing = time.Now()
	s.lastPong = time.Now()
	s.lastPingMu.Unlock()

	go s.readLoop()
	go s.writeLoop()
	go s.healthLoop()

	s.log.Info().Msg("upstream session connected")
	return nil
}

// IsConnected reports the session's last-known connection state.
func (s *Session) IsConnected() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.connected
}

// Send enqueues cmd for the write loop, after passing pacing checks.
// Historical-data requests additionally consume the 60-per-10-minute pacing
// window; all other commands only consume the general rate limiter.
func (s *Session) Send(ctx context.Context, cmd Command) error {
	if !s.IsConnected() {
		return fmt.Errorf("session not connected")
	}
	if cmd.Name == CmdReqHistoricalData && !s.historyPacing.allow() {
		return fmt.Errorf("historical data pacing limit exceeded (%d per %s)", historicalDataPacingLimit, historicalDataPacingWindow)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing limiter: %w", err)
	}
	select {
	case s.sendCh <- cmd:
		return nil
	case <-s.stopCh:
		return fmt.Errorf("session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the session's traffic counters.
func (s *Session) Stats() Stats { return s.metrics.Snapshot() }

// Close tears the session down and stops its goroutines.
func (s *Session) Close() error {
	s.cancel()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Session) disconnect(reason error) {
	s.stateMu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.stateMu.Unlock()

	if wasConnected {
		s.log.Warn().Err(reason).Msg("upstream session disconnected")
		s.metrics.recordReconnect()
	}
}

// readPooled drains r (one websocket message) into a buffer leased from
// s.bufPool, growing into the next tier as needed, and returns both the
// filled slice and the backing buffer for the caller to Put back once it's
// done with raw — decodeEvent never retains a reference into raw, since
// json.Unmarshal copies every string it produces.
func (s *Session) readPooled(r io.Reader) (raw []byte, pooled []byte, err error) {
	buf := s.bufPool.Get(mediumBufferSize)
	total := 0
	for {
		n, rerr := r.Read(buf[total:])
		total += n
		if rerr == io.EOF {
			return buf[:total], buf, nil
		}
		if rerr != nil {
			return nil, buf, rerr
		}
		if total == len(buf) {
			grown := s.bufPool.Get(len(buf) * 2)
			copy(grown, buf[:total])
			s.bufPool.Put(buf)
			buf = grown
		}
	}
}

func (s *Session) readLoop() {
	// Connect may start a new readLoop after an earlier one has exited, so
	// doneCh is closed only by the first loop to exit.
	defer func() {
		select {
		case <-s.doneCh:
		default:
			close(s.doneCh)
		}
	}()
	for {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			return
		}

		if s.cfg.PongWait > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		}
		conn.SetPongHandler(func(string) error {
			s.lastPingMu.Lock()
			s.lastPong = time.Now()
			s.lastPingMu.Unlock()
			if s.cfg.PongWait > 0 {
				_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
			}
			return nil
		})

		_, r, err := conn.NextReader()
		if err != nil {
			s.disconnect(err)
			s.metrics.recordError()
			return
		}
		raw, pooled, err := s.readPooled(r)
		if err != nil {
			s.disconnect(err)
			s.metrics.recordError()
			return
		}
		s.metrics.recordReceived()

		ev, err := decodeEvent(raw)
		s.bufPool.Put(pooled)
		if err != nil {
			s.log.Warn().Err(err).Msg("dropping unrecognized upstream frame")
			continue
		}

		if errEv, ok := ev.(mailbox.ErrorEvent); ok && errEv.ID == -1 {
			s.disconnect(fmt.Errorf("upstream reported connection error: %s", errEv.Message))
		}

		s.onEvent(ev)

		select {
		case <-s.stopCh:
			return
		default:
		}
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-s.sendCh:
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			if conn == nil {
				continue
			}
			frame, err := encodeFrame(cmd)
			if err != nil {
				s.log.Error().Err(err).Str("command", cmd.Name).Msg("encode upstream command")
				continue
			}
			if s.cfg.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Error().Err(err).Str("command", cmd.Name).Msg("write upstream command")
				s.disconnect(err)
				continue
			}
			s.metrics.recordSent()

		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.disconnect(err)
				continue
			}
			s.lastPingMu.Lock()
			s.lastPing = time.Now()
			s.lastPingMu.Unlock()

		case <-s.stopCh:
			return
		}
	}
}

func (s *Session) healthLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.lastPingMu.Lock()
			stale := s.cfg.PongWait > 0 && time.Since(s.lastPong) > s.cfg.PongWait
			s.lastPingMu.Unlock()
			if stale {
				s.disconnect(fmt.Errorf("pong wait exceeded"))
				return
			}
		case <-s.stopCh:
			return
		}
	}
}
