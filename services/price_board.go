package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Spare-Link/storefront/clients"
	applog "github.com/Spare-Link/storefront/logger"
	"github.com/Spare-Link/storefront/models"
	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"go.uber.org/zap"
)

// PriceCalculator prices one calculated shipping option.
type PriceCalculator interface {
	CalculatePrice(ctx context.Context, auth clients.RequestAuth, optionID, cartID string) models.PriceResult
}

// PriceSnapshot is a copy of the board at one point in time.
type PriceSnapshot struct {
	Generation uint64
	CartID     string
	Prices     map[string]models.PriceResult
	Pending    map[string]struct{}
}

// Price returns the settled result for an option, if any.
func (s PriceSnapshot) Price(optionID string) (models.PriceResult, bool) {
	r, ok := s.Prices[optionID]
	return r, ok
}

func (s PriceSnapshot) IsPending(optionID string) bool {
	_, ok := s.Pending[optionID]
	return ok
}

// Resolving reports whether any calculation of the current batch is in flight.
func (s PriceSnapshot) Resolving() bool {
	return len(s.Pending) > 0
}

// ResolvingFor is Resolving as seen by cartID. A snapshot taken after another
// request switched the board to a different cart counts as still resolving
// when cartID has calculated options.
func (s PriceSnapshot) ResolvingFor(cartID string, options []models.ShippingOption) bool {
	if s.CartID == cartID {
		return s.Resolving()
	}
	for _, o := range options {
		if o.IsCalculated() {
			return true
		}
	}
	return false
}

// PriceBoard holds the calculated prices of one checkout session.
//
// Each Resolve with a new cart or option set starts a batch under a new
// generation. Results are written only while their batch is still the current
// generation, so a late answer for an old cart never lands in the map of a
// newer one.
type PriceBoard struct {
	calc    PriceCalculator
	parent  context.Context
	metrics *awspkg.MetricsClient
	logger  *zap.Logger

	mu         sync.Mutex
	generation uint64
	key        string
	cartID     string
	prices     map[string]models.PriceResult
	pending    map[string]struct{}
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewPriceBoard creates a board whose calculations live at most as long as ctx.
func NewPriceBoard(ctx context.Context, calc PriceCalculator, metrics *awspkg.MetricsClient, logger *zap.Logger) *PriceBoard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceBoard{
		calc:    calc,
		parent:  ctx,
		metrics: metrics,
		logger:  logger,
		prices:  make(map[string]models.PriceResult),
		pending: make(map[string]struct{}),
	}
}

func batchKey(cartID string, ids []string) string {
	return cartID + "|" + strings.Join(ids, ",")
}

// Resolve starts pricing every calculated option of cartID. Calling it again
// with the same cart and option set is a no-op. It reports whether a new
// batch was started.
//
// reqCtx only lends its request ID to the batch; the calculations are bound
// to the board's own context and outlive the request.
func (b *PriceBoard) Resolve(reqCtx context.Context, auth clients.RequestAuth, cartID string, options []models.ShippingOption) bool {
	ids := make([]string, 0, len(options))
	for _, o := range options {
		if o.IsCalculated() {
			ids = append(ids, o.ID)
		}
	}
	sort.Strings(ids)
	key := batchKey(cartID, ids)

	b.mu.Lock()
	defer b.mu.Unlock()

	if key == b.key {
		return false
	}

	gen := b.resetLocked()
	b.key = key
	b.cartID = cartID
	if len(ids) == 0 {
		return true
	}

	parent := b.parent
	if rid := applog.RequestIDFrom(reqCtx); rid != "" {
		parent = applog.WithRequestID(parent, rid)
	}
	ctx, cancel := context.WithCancel(parent)
	b.cancel = cancel
	for _, id := range ids {
		b.pending[id] = struct{}{}
		b.wg.Add(1)
		go func(optionID string) {
			defer b.wg.Done()
			res := b.calc.CalculatePrice(ctx, auth, optionID, cartID)
			res.OptionID = optionID
			b.apply(ctx, gen, res)
		}(id)
	}
	return true
}

// resetLocked bumps the generation, cancels the running batch and clears
// every result. Callers hold b.mu.
func (b *PriceBoard) resetLocked() uint64 {
	b.generation++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.key = ""
	b.cartID = ""
	b.prices = make(map[string]models.PriceResult)
	b.pending = make(map[string]struct{})
	return b.generation
}

func (b *PriceBoard) apply(batchCtx context.Context, gen uint64, res models.PriceResult) {
	b.mu.Lock()
	current := gen == b.generation
	if current {
		b.prices[res.OptionID] = res
		delete(b.pending, res.OptionID)
	}
	b.mu.Unlock()

	ctx := context.Background()
	switch {
	case !current:
		applog.FromContext(batchCtx, b.logger).Debug("Dropping stale shipping price",
			zap.String("option_id", res.OptionID),
			zap.Uint64("generation", gen),
		)
		_ = b.metrics.RecordCount(ctx, awspkg.MetricShippingPriceDiscarded, nil)
	case res.Resolved():
		_ = b.metrics.RecordCount(ctx, awspkg.MetricShippingPriceResolved, nil)
	default:
		_ = b.metrics.RecordCount(ctx, awspkg.MetricShippingPriceFailed, nil)
	}
}

// Invalidate discards every result and in-flight calculation.
func (b *PriceBoard) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *PriceBoard) Snapshot() PriceSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := PriceSnapshot{
		Generation: b.generation,
		CartID:     b.cartID,
		Prices:     make(map[string]models.PriceResult, len(b.prices)),
		Pending:    make(map[string]struct{}, len(b.pending)),
	}
	for k, v := range b.prices {
		snap.Prices[k] = v
	}
	for k := range b.pending {
		snap.Pending[k] = struct{}{}
	}
	return snap
}

// Close cancels the running batch and waits for its goroutines to return.
func (b *PriceBoard) Close() {
	b.Invalidate()
	b.wg.Wait()
}
