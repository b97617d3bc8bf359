package services

import (
	"context"
	"sync"
	"time"

	"github.com/Spare-Link/storefront/models"
	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"go.uber.org/zap"
)

// CheckoutSession is the server-side checkout state of one browser.
type CheckoutSession struct {
	ID     string
	Prices *PriceBoard

	mu          sync.Mutex
	submissions map[models.Step]*Submission
	step        models.Step
	cartID      string
	lastSeen    time.Time
}

// Submission returns the coordinator of step, creating it on first use.
func (s *CheckoutSession) Submission(step models.Step) *Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[step]
	if !ok {
		sub = NewSubmission()
		sub.StepChanged(s.step)
		s.submissions[step] = sub
	}
	return sub
}

// SubmissionStates reports the state of every coordinator used so far.
func (s *CheckoutSession) SubmissionStates() map[models.Step]models.SubmissionState {
	s.mu.Lock()
	subs := make(map[models.Step]*Submission, len(s.submissions))
	for k, v := range s.submissions {
		subs[k] = v
	}
	s.mu.Unlock()

	out := make(map[models.Step]models.SubmissionState, len(subs))
	for k, v := range subs {
		out[k] = v.State()
	}
	return out
}

// ObserveCart invalidates the price board when the browser switched carts.
func (s *CheckoutSession) ObserveCart(cartID string) {
	s.mu.Lock()
	changed := s.cartID != "" && s.cartID != cartID
	s.cartID = cartID
	s.mu.Unlock()

	if changed {
		s.Prices.Invalidate()
	}
}

// ObserveStep records the active step. A step change invalidates the price
// board and clears retained submission errors.
func (s *CheckoutSession) ObserveStep(step models.Step) {
	s.mu.Lock()
	changed := s.step != "" && s.step != step
	s.step = step
	subs := make([]*Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.StepChanged(step)
	}
	if changed {
		s.Prices.Invalidate()
	}
}

func (s *CheckoutSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *CheckoutSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionStore keeps checkout sessions by browser session id and evicts the
// idle ones.
type SessionStore struct {
	calc    PriceCalculator
	ttl     time.Duration
	metrics *awspkg.MetricsClient
	logger  *zap.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*CheckoutSession
}

func NewSessionStore(calc PriceCalculator, ttl time.Duration, metrics *awspkg.MetricsClient, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionStore{
		calc:     calc,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*CheckoutSession),
	}
}

// Get returns the session for id, creating it when absent.
func (s *SessionStore) Get(id string) *CheckoutSession {
	now := s.now()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &CheckoutSession{
			ID:          id,
			Prices:      NewPriceBoard(s.ctx, s.calc, s.metrics, s.logger),
			submissions: make(map[models.Step]*Submission),
		}
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	sess.touch(now)
	return sess
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed.
func (s *SessionStore) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*CheckoutSession
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Prices.Invalidate()
	}
	if len(expired) > 0 {
		s.logger.Debug("Evicted idle checkout sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close cancels every in-flight price calculation.
func (s *SessionStore) Close() {
	s.cancel()
}
