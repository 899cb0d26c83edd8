// Package gateway implements the request/response correlation engine: a
// fixed pool of upstream Connections, a demultiplexer routing inbound
// events into per-request mailboxes, and one method per HTTP endpoint
// following acquire -> healthcheck -> allocate -> reset -> send -> wait ->
// teardown -> snapshot -> release.
package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ibgw/gateway/internal/clientpool"
	"github.com/ibgw/gateway/internal/ids"
	"github.com/ibgw/gateway/internal/mailbox"
	"github.com/ibgw/gateway/internal/upstream"
)

// gatewayConfig collects the values Option functions mutate; see
// rest/options.go's clientConfig/Option pattern in the teacher for this
// idiom.
type gatewayConfig struct {
	Host                string
	Port                int
	PoolSize            int
	PollBudget          int
	PlaceOrderBudget    int
	MarketTickThreshold int
	Logger              zerolog.Logger
}

func defaultGatewayConfig() gatewayConfig {
	return gatewayConfig{
		Host:                "127.0.0.1",
		Port:                4001,
		PoolSize:            8,
		PollBudget:          20,
		PlaceOrderBudget:    8,
		MarketTickThreshold: 5,
		Logger:              zerolog.Nop(),
	}
}

// Option configures a Gateway at construction time.
type Option func(*gatewayConfig)

// WithUpstream sets the upstream Gateway's host and TCP port.
func WithUpstream(host string, port int) Option {
	return func(c *gatewayConfig) { c.Host = host; c.Port = port }
}

// WithPoolSize sets the number of upstream connections (must be >= 2: one
// reserved order client plus at least one read client).
func WithPoolSize(n int) Option {
	return func(c *gatewayConfig) { c.PoolSize = n }
}

// WithPollBudget sets the default wait-primitive budget, in 250 ms
// intervals.
func WithPollBudget(n int) Option {
	return func(c *gatewayConfig) { c.PollBudget = n }
}

// WithLogger sets the structured logger every operation logs through.
func WithLogger(l zerolog.Logger) Option {
	return func(c *gatewayConfig) { c.Logger = l }
}

// Gateway owns the pool, registry, demultiplexer, and identifier allocators
// for one upstream deployment. It is safe for concurrent use by many HTTP
// handlers.
type Gateway struct {
	cfg    gatewayConfig
	pool   *clientpool.Pool
	reg    *mailbox.Registry
	demuxs map[int64]*mailbox.Demux

	tickerAlloc ids.TickerAllocator
	orderAlloc  ids.OrderIDAllocator

	sessions      map[int64]*upstream.Session
	orderClientID int64

	log zerolog.Logger
}

// New builds a Gateway with cfg.PoolSize sessions, clientId 0 reserved as
// the order client. It does not dial upstream; call Start for that.
func New(opts ...Option) (*Gateway, error) {
	cfg := defaultGatewayConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.PoolSize < 2 {
		return nil, fmt.Errorf("pool size must be at least 2 (1 reserved order client + >=1 read client), got %d", cfg.PoolSize)
	}

	gw := &Gateway{
		cfg:           cfg,
		reg:           mailbox.NewRegistry(),
		demuxs:        make(map[int64]*mailbox.Demux, cfg.PoolSize),
		sessions:      make(map[int64]*upstream.Session, cfg.PoolSize),
		orderClientID: 0,
		log:           cfg.Logger,
	}

	// Positions and account-update callbacks carry no request id of their
	// own, so each session gets its own Demux bound to its clientId; all
	// share the same Registry and OrderIDAllocator.
	sessCfg := upstream.DefaultConfig(cfg.Host, cfg.Port)
	for i := int64(0); i < int64(cfg.PoolSize); i++ {
		d := mailbox.NewDemux(gw.reg, &gw.orderAlloc, i)
		gw.demuxs[i] = d
		gw.sessions[i] = upstream.NewSession(i, sessCfg, d.Dispatch, cfg.Logger)
	}

	pool, err := clientpool.New(gw.sessions, gw.orderClientID, clientpool.DefaultWaitBudget)
	if err != nil {
		return nil, err
	}
	gw.pool = pool

	return gw, nil
}

// Start dials every session. Sessions that fail to connect at startup are
// retried lazily by the pool's Healthcheck on first use, matching
// original_source/connection.py's reconnect-on-demand behavior.
func (g *Gateway) Start() {
	for id, sess := range g.sessions {
		if err := sess.Connect(); err != nil {
			g.log.Warn().Err(err).Int64("clientId", id).Msg("initial upstream connect failed, will retry on first use")
		}
	}
}

// Close tears down every session.
func (g *Gateway) Close() {
	for _, sess := range g.sessions {
		_ = sess.Close()
	}
}

// ManagedAccounts returns the account codes the upstream most recently
// reported via managedAccounts.
func (g *Gateway) ManagedAccounts() []string { return g.reg.ManagedAccounts() }

// acquireAndCheck acquires a Connection (the reserved order client if
// wantOrderClient, any free read client otherwise), health-checks it, and
// returns NotConnected on failure — the first two steps shared by every
// request operation before it allocates an id or sends anything.
func (g *Gateway) acquireAndCheck(ctx context.Context, wantOrderClient bool) (*upstream.Session, *GatewayError) {
	var sess *upstream.Session
	var err error
	if wantOrderClient {
		sess, err = g.pool.AcquireOrderClient(ctx)
	} else {
		sess, err = g.pool.Acquire(ctx)
	}
	if err != nil {
		g.log.Warn().Err(err).Msg("pool acquire failed")
		return nil, ErrPoolExhausted()
	}

	if !g.pool.Healthcheck(sess) {
		g.pool.Release(sess)
		g.log.Warn().Int64("clientId", sess.ClientID()).Msg("acquired connection is not connected upstream")
		return nil, ErrNotConnected()
	}
	return sess, nil
}
