// Package service runs the consumer as a long-lived process: it opens the
// channel, negotiates once, then decodes frames as notifications arrive on
// the control bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/danmuck/shmframe/internal/bus"
	"github.com/danmuck/shmframe/internal/config"
	"github.com/danmuck/shmframe/internal/consumer"
	logs "github.com/danmuck/shmframe/internal/logging"
	"github.com/danmuck/shmframe/internal/observability"
	"github.com/danmuck/shmframe/internal/protocol"
	"github.com/danmuck/shmframe/internal/protocol/session"
	"github.com/danmuck/shmframe/internal/server"
	"github.com/danmuck/shmframe/internal/shm"
)

var (
	ErrOpenAttemptsExhausted = errors.New("service: channel open attempts exhausted")
	ErrBusAddrRequired       = errors.New("service: bus address required")
)

// ServiceConfig configures one consumer process.
type ServiceConfig struct {
	Name          string
	Channel       shm.Options
	DrainToLatest bool
	DropExpired   bool
	BusAddr       string
	BusToken      string
	HTTPAddr      string
	CorsOrigins   []string
	Session       session.Config
}

func DefaultServiceConfig() ServiceConfig {
	cfg, _ := ServiceConfigFrom(config.DefaultConsumerConfig())
	return cfg
}

// ServiceConfigFrom maps a loaded config file onto runtime settings.
func ServiceConfigFrom(c config.ConsumerConfig) (ServiceConfig, error) {
	opts, err := c.ShmOptions()
	if err != nil {
		return ServiceConfig{}, err
	}
	return ServiceConfig{
		Name:          strings.TrimSpace(c.Name),
		Channel:       opts,
		DrainToLatest: c.DrainToLatest,
		DropExpired:   c.DropExpired,
		BusAddr:       strings.TrimSpace(c.BusAddr),
		BusToken:      c.BusToken,
		HTTPAddr:      strings.TrimSpace(c.HTTPAddr),
		CorsOrigins:   c.CorsOrigins,
		Session:       c.SessionConfig(),
	}, nil
}

// Opener attaches to a channel. The default opens the shared-memory segment.
type Opener func(shm.Options) (shm.Channel, error)

func openSegment(opts shm.Options) (shm.Channel, error) {
	seg, err := shm.Open(opts)
	if err != nil {
		return nil, err
	}
	return seg, nil
}

// FrameHook observes every delivered frame on the consuming goroutine.
type FrameHook func(consumer.FrameNotification, *consumer.DecodedFrame)

type Service struct {
	cfg        ServiceConfig
	instanceID string
	open       Opener
	onFrame    FrameHook
	state      *server.State
	rng        *rand.Rand

	client *consumer.Client
	conn   *bus.Conn
	clock  uint64

	readyOnce sync.Once
	ready     chan struct{}
}

func NewService(cfg ServiceConfig) *Service {
	cfg.Session = cfg.Session.WithDefaults()
	cfg.Channel = cfg.Channel.WithDefaults()
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "shmframe"
	}
	return &Service{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		open:       openSegment,
		state:      server.NewState(cfg.Name),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		ready:      make(chan struct{}),
	}
}

// SetOpener replaces how the channel is attached. Call before Run.
func (s *Service) SetOpener(open Opener) {
	if open != nil {
		s.open = open
	}
}

func (s *Service) SetFrameHook(hook FrameHook) {
	s.onFrame = hook
}

func (s *Service) State() *server.State {
	return s.state
}

// Ready is closed once the channel is negotiated and the bus is listening.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// BusAddr is the bound bus address, valid after Ready.
func (s *Service) BusAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.Addr().String()
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

func (s *Service) RunContext(ctx context.Context) error {
	if err := s.bootstrap(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	defer s.shutdown()
	return s.serve(ctx)
}

// bootstrap opens the channel, negotiates geometry and starts listening.
func (s *Service) bootstrap(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.BusAddr) == "" {
		return ErrBusAddrRequired
	}
	observability.RegisterMetrics()

	client, chID, err := s.connect(ctx)
	if err != nil {
		return err
	}
	s.client = client
	s.state.SetChannel(chID, client.Session())

	conn, err := bus.Listen(s.cfg.BusAddr, bus.Options{Token: s.cfg.BusToken})
	if err != nil {
		_ = client.Close()
		return err
	}
	s.conn = conn

	if s.cfg.HTTPAddr != "" {
		httpSrv := server.New(s.cfg.Name, s.cfg.HTTPAddr, s.cfg.CorsOrigins, s.state)
		go func() {
			if err := httpSrv.Serve(ctx); err != nil {
				logs.Errf("service.Service.bootstrap http server stopped err=%v", err)
			}
		}()
	}

	sess := client.Session()
	logs.Infof(
		"service.Service.bootstrap ready name=%q instance=%s cameras=%s layout=%s size=%dx%d bus=%s",
		s.cfg.Name, s.instanceID, s.cfg.Channel.Cameras, sess.Layout(), sess.Width(), sess.Height(), conn.Addr(),
	)
	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

// connect retries channel open and negotiation until both succeed. The
// producer may not have created the segment or published its record yet.
func (s *Service) connect(ctx context.Context) (*consumer.Client, string, error) {
	attempt := 0
	for {
		client, id, err := s.tryConnect()
		if err == nil {
			return client, id, nil
		}
		attempt++
		if max := s.cfg.Session.MaxOpenAttempts; max > 0 && attempt >= max {
			return nil, "", fmt.Errorf("%w after %d attempts: %w", ErrOpenAttemptsExhausted, attempt, err)
		}
		logs.Warnf("service.Service.connect failed attempt=%d cameras=%s err=%v", attempt, s.cfg.Channel.Cameras, err)
		if err := s.waitBackoff(ctx, attempt); err != nil {
			return nil, "", err
		}
	}
}

func (s *Service) tryConnect() (*consumer.Client, string, error) {
	ch, err := s.open(s.cfg.Channel)
	if err != nil {
		return nil, "", err
	}
	client := consumer.NewClient(ch, consumer.ClientConfig{
		Cameras:       s.cfg.Channel.Cameras,
		DrainToLatest: s.cfg.DrainToLatest,
	})
	if _, err := client.Negotiate(); err != nil {
		_ = client.Close()
		return nil, "", err
	}
	id := ""
	if withID, ok := ch.(interface{ ID() string }); ok {
		id = withID.ID()
	}
	return client, id, nil
}

func (s *Service) waitBackoff(ctx context.Context, attempt int) error {
	delay := session.NextBackoffDelay(s.cfg.Session.Backoff, attempt, s.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// serve is the single consuming loop: poll the bus, decode, heartbeat.
func (s *Service) serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Session.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logs.Infof("service.Service.serve shutdown name=%q", s.cfg.Name)
			return nil
		case <-ticker.C:
			snap := s.state.Snapshot()
			logs.Infof(
				"service.Service.heartbeat name=%q notifications=%d frames=%d drained=%d expired=%d failures=%d",
				s.cfg.Name, snap.Counters.Notifications, snap.Counters.Frames,
				snap.Counters.Drained, snap.Counters.Expired, snap.Counters.Failures,
			)
		default:
		}

		msg, err := s.conn.Poll(s.cfg.Session.PollTimeout)
		switch {
		case err == nil:
			s.handleMessage(msg)
		case errors.Is(err, bus.ErrNoMessage):
		case errors.Is(err, bus.ErrClosed):
			if ctx.Err() != nil {
				return nil
			}
			return err
		default:
			logs.Warnf("service.Service.serve bus rejected message err=%v", err)
		}
	}
}

func (s *Service) handleMessage(msg *protocol.Message) {
	notice, err := consumer.TryDecode(msg)
	if err != nil {
		observability.RecordNotification("invalid")
		logs.Warnf("service.Service.handleMessage bad notification id=%d err=%v", msg.Header.MessageID, err)
		return
	}
	n, ok := s.client.Accept(notice)
	if !ok {
		s.state.RecordIgnored()
		return
	}
	s.state.RecordNotification(n)

	if n.CaptureTimestamp > s.clock {
		s.clock = n.CaptureTimestamp
	}
	f, err := s.client.Next()
	if err != nil {
		if errors.Is(err, consumer.ErrNoDataPending) {
			logs.Debugf("service.Service.handleMessage no payload for ts=%d", n.CaptureTimestamp)
			return
		}
		s.state.RecordFailure(err)
		return
	}
	// The payload is consumed either way so later notifications stay aligned
	// with their frames.
	if s.cfg.DropExpired && n.Expired(s.clock) {
		s.state.RecordExpired()
		logs.Debugf("service.Service.handleMessage dropped expired ts=%d valid_until=%d clock=%d",
			n.CaptureTimestamp, n.ValidUntil, s.clock)
		return
	}
	s.state.RecordFrame(f, time.Now())
	if s.onFrame != nil {
		s.onFrame(n, f)
	}
}

func (s *Service) shutdown() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logs.Warnf("service.Service.shutdown close channel err=%v", err)
		}
	}
}
