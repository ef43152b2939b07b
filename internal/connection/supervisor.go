package connection

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// Capability is the minimal surface an external connection exposes to its
// Supervisor. Implementations exist for the market feed, the broker gateway
// session and the shared cache client.
type Capability interface {
	// Name identifies the connection in logs and health reports.
	Name() string
	// DoConnect establishes the underlying connection.
	DoConnect(ctx context.Context) error
	// DoDisconnect tears the connection down.
	DoDisconnect(ctx context.Context) error
	// ProbeAlive cheaply verifies the connection is still usable.
	ProbeAlive(ctx context.Context) error
}

// Policy bundles the retry, backoff and health-check settings applied to one
// supervised connection.
type Policy struct {
	MaxRetries     int
	Backoff        Backoff
	AttemptTimeout time.Duration
	ProbeInterval  time.Duration
}

// PolicyFromConfig builds a Policy from the connection config section.
func PolicyFromConfig(cfg config.ConnectionConfig) Policy {
	return Policy{
		MaxRetries: cfg.MaxRetries,
		Backoff: Backoff{
			Base:   cfg.BackoffBase.Std(),
			Max:    cfg.BackoffMax.Std(),
			Jitter: 0,
		},
		AttemptTimeout: cfg.AttemptTimeout.Std(),
		ProbeInterval:  cfg.ProbeInterval.Std(),
	}
}

// Supervisor wraps a Capability with connect-time retries, exponential
// backoff, a background health-check loop and reconnect-on-failure
// execution. One Supervisor guards one external connection.
type Supervisor struct {
	capability Capability
	policy     Policy
	log        *logger.Logger

	// mu serializes connect/disconnect transitions.
	mu sync.Mutex

	healthMu sync.RWMutex
	health   types.ConnectionHealth

	probeCancel context.CancelFunc
	probeDone   chan struct{}
}

// NewSupervisor creates a Supervisor for the given capability.
func NewSupervisor(capability Capability, policy Policy, log *logger.Logger) *Supervisor {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}

	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = 10 * time.Second
	}

	if policy.ProbeInterval <= 0 {
		policy.ProbeInterval = 30 * time.Second
	}

	//nolint:exhaustruct
	return &Supervisor{
		capability: capability,
		policy:     policy,
		log:        log,
		health: types.ConnectionHealth{
			Name:  capability.Name(),
			State: types.ConnectionStateDisconnected,
		},
	}
}

// Connect establishes the connection, retrying with exponential backoff up to
// the policy's attempt limit. On success the background health loop is
// started. Connecting an already connected supervisor is a no-op.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return err
	}

	s.startHealthLoopLocked()

	return nil
}

// connectLocked runs the retry ladder. Callers must hold s.mu.
func (s *Supervisor) connectLocked(ctx context.Context) error {
	if s.State() == types.ConnectionStateConnected {
		return nil
	}

	s.setState(types.ConnectionStateConnecting)

	var lastErr error

	for attempt := 0; attempt < s.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			s.setState(types.ConnectionStateError)

			return errors.Wrapf(errors.ErrCodeConnectionFailed, err, "%s: connect cancelled", s.capability.Name())
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.policy.AttemptTimeout)
		err := s.capability.DoConnect(attemptCtx)

		cancel()

		if err == nil {
			s.markConnected()
			s.log.Info("connection established",
				zap.String("connection", s.capability.Name()),
				zap.Int("attempt", attempt+1),
			)

			return nil
		}

		lastErr = err
		s.recordFailure(err)
		s.log.Warn("connection attempt failed",
			zap.String("connection", s.capability.Name()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", s.policy.MaxRetries),
			zap.Error(err),
		)

		if attempt < s.policy.MaxRetries-1 {
			if err := sleepCtx(ctx, s.policy.Backoff.Next(attempt)); err != nil {
				s.setState(types.ConnectionStateError)

				return errors.Wrapf(errors.ErrCodeConnectionFailed, err, "%s: connect cancelled", s.capability.Name())
			}
		}
	}

	s.setState(types.ConnectionStateError)

	return errors.Wrapf(errors.ErrCodeReconnectExhausted, lastErr,
		"%s: all %d connection attempts failed", s.capability.Name(), s.policy.MaxRetries)
}

// Disconnect stops the health loop and tears down the connection.
// Disconnecting an already disconnected supervisor is a no-op.
func (s *Supervisor) Disconnect(ctx context.Context) error {
	s.stopHealthLoop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == types.ConnectionStateDisconnected {
		return nil
	}

	discCtx, cancel := context.WithTimeout(ctx, s.policy.AttemptTimeout)
	defer cancel()

	err := s.capability.DoDisconnect(discCtx)
	s.setState(types.ConnectionStateDisconnected)

	if err != nil {
		s.log.Warn("disconnect returned an error",
			zap.String("connection", s.capability.Name()),
			zap.Error(err),
		)

		return errors.Wrapf(errors.ErrCodeConnectionFailed, err, "%s: disconnect failed", s.capability.Name())
	}

	s.log.Info("connection closed", zap.String("connection", s.capability.Name()))

	return nil
}

// Execute runs op through the connection, connecting first if needed. When op
// fails with a connection-class error the supervisor reconnects once and
// retries op a single time before propagating the error. Domain errors (venue
// rejections, validation failures) pass through untouched.
func (s *Supervisor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if s.State() != types.ConnectionStateConnected {
		if err := s.Connect(ctx); err != nil {
			return err
		}
	}

	err := op(ctx)
	if err == nil {
		return nil
	}

	if !isConnectionError(err) {
		return err
	}

	s.log.Warn("operation failed, reconnecting once",
		zap.String("connection", s.capability.Name()),
		zap.Error(err),
	)

	s.recordFailure(err)
	s.setState(types.ConnectionStateReconnecting)

	s.mu.Lock()
	reconnectErr := s.connectLocked(ctx)
	s.mu.Unlock()

	if reconnectErr != nil {
		return reconnectErr
	}

	return op(ctx)
}

// Health returns a copy of the connection's health record.
func (s *Supervisor) Health() types.ConnectionHealth {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()

	return s.health
}

// State returns the current connection state.
func (s *Supervisor) State() types.ConnectionState {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()

	return s.health.State
}

// startHealthLoopLocked launches the probe loop. Callers must hold s.mu.
func (s *Supervisor) startHealthLoopLocked() {
	if s.probeCancel != nil {
		return
	}

	probeCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.probeCancel = cancel
	s.probeDone = done

	go s.healthLoop(probeCtx, done)
}

func (s *Supervisor) stopHealthLoop() {
	s.mu.Lock()
	cancel := s.probeCancel
	done := s.probeDone
	s.probeCancel = nil
	s.probeDone = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (s *Supervisor) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.policy.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

// probe checks the connection once. A failed probe marks the connection
// reconnecting and runs the full retry ladder again.
func (s *Supervisor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.policy.AttemptTimeout)
	defer cancel()

	start := time.Now()
	err := s.capability.ProbeAlive(probeCtx)
	latency := time.Since(start)

	if err == nil {
		s.recordLatency(latency)

		return
	}

	if ctx.Err() != nil {
		return
	}

	s.log.Warn("health probe failed",
		zap.String("connection", s.capability.Name()),
		zap.Duration("latency", latency),
		zap.Error(err),
	)
	s.recordFailure(err)
	s.setState(types.ConnectionStateReconnecting)

	s.mu.Lock()
	reconnectErr := s.connectLocked(ctx)
	s.mu.Unlock()

	if reconnectErr != nil && ctx.Err() == nil {
		s.log.Error("reconnect after failed probe did not recover",
			zap.String("connection", s.capability.Name()),
			zap.Error(reconnectErr),
		)
	}
}

func (s *Supervisor) markConnected() {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	s.health.State = types.ConnectionStateConnected
	s.health.LastConnectedAt = time.Now()
	s.health.LastError = ""
	s.health.ConsecutiveFailures = 0
}

func (s *Supervisor) recordFailure(err error) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	s.health.LastError = err.Error()
	s.health.ConsecutiveFailures++
}

func (s *Supervisor) recordLatency(latency time.Duration) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	s.health.LastLatency = latency
}

func (s *Supervisor) setState(state types.ConnectionState) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	s.health.State = state
}

// isConnectionError reports whether err warrants a reconnect. Timeouts count
// as connection failures. Uncoded errors are assumed to be transport failures
// since every domain error carries a code.
func isConnectionError(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeUnknown,
		errors.ErrCodeConnectionFailed,
		errors.ErrCodeConnectionTimeout,
		errors.ErrCodeProbeFailed,
		errors.ErrCodeNotConnected:
		return true
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
