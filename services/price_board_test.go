package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Spare-Link/storefront/clients"
	"github.com/Spare-Link/storefront/logger"
	"github.com/Spare-Link/storefront/models"
	"github.com/Spare-Link/storefront/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedCalculator answers each (cart, option) once its gate is released. It
// ignores cancellation to behave like a response that arrives anyway.
type gatedCalculator struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	amounts map[string]float64
	calls   int
}

func newGatedCalculator() *gatedCalculator {
	return &gatedCalculator{gates: make(map[string]chan struct{}), amounts: make(map[string]float64)}
}

func (g *gatedCalculator) gate(cartID, optionID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := cartID + "/" + optionID
	ch, ok := g.gates[key]
	if !ok {
		ch = make(chan struct{})
		g.gates[key] = ch
	}
	return ch
}

func (g *gatedCalculator) release(cartID, optionID string, amount float64) {
	g.mu.Lock()
	g.amounts[cartID+"/"+optionID] = amount
	g.mu.Unlock()
	close(g.gate(cartID, optionID))
}

func (g *gatedCalculator) CalculatePrice(_ context.Context, _ clients.RequestAuth, optionID, cartID string) models.PriceResult {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	<-g.gate(cartID, optionID)

	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.amounts[cartID+"/"+optionID]
	if !ok || amount < 0 {
		return models.PriceResult{OptionID: optionID, Status: models.PriceFailed}
	}
	return models.PriceResult{OptionID: optionID, Amount: amount, Status: models.PriceResolved}
}

func calculated(id string) models.ShippingOption {
	return models.ShippingOption{ID: id, Name: id, PriceType: models.PriceTypeCalculated}
}

func flat(id string, amount float64) models.ShippingOption {
	return models.ShippingOption{ID: id, Name: id, PriceType: models.PriceTypeFlat, Amount: &amount}
}

func TestPriceBoard_ResultsApplyAsTheySettle(t *testing.T) {
	calc := newGatedCalculator()
	board := services.NewPriceBoard(context.Background(), calc, nil, nil)
	defer board.Close()

	started := board.Resolve(context.Background(), auth, "C1", []models.ShippingOption{calculated("A"), calculated("B"), flat("F", 5)})
	require.True(t, started)

	snap := board.Snapshot()
	assert.True(t, snap.IsPending("A"))
	assert.True(t, snap.IsPending("B"))
	assert.False(t, snap.IsPending("F"))

	calc.release("C1", "B", 7)
	assert.Eventually(t, func() bool {
		_, ok := board.Snapshot().Price("B")
		return ok
	}, time.Second, 5*time.Millisecond)

	snap = board.Snapshot()
	b, _ := snap.Price("B")
	assert.Equal(t, 7.0, b.Amount)
	assert.True(t, snap.IsPending("A"))
	assert.Equal(t, models.PricePending, services.DisplayPrice(calculated("A"), snap, "C1", "EUR").State)

	calc.release("C1", "A", 3)
	assert.Eventually(t, func() bool { return !board.Snapshot().Resolving() }, time.Second, 5*time.Millisecond)
}

func TestPriceBoard_SameBatchIsNoop(t *testing.T) {
	calc := newGatedCalculator()
	board := services.NewPriceBoard(context.Background(), calc, nil, nil)

	opts := []models.ShippingOption{calculated("B"), calculated("A")}
	require.True(t, board.Resolve(context.Background(), auth, "C1", opts))
	assert.False(t, board.Resolve(context.Background(), auth, "C1", []models.ShippingOption{calculated("A"), calculated("B")}))

	calc.release("C1", "A", 1)
	calc.release("C1", "B", 2)
	board.Close()
	assert.Equal(t, 2, calc.calls)
}

func TestPriceBoard_LateResultOfOldCartIsDiscarded(t *testing.T) {
	calc := newGatedCalculator()
	board := services.NewPriceBoard(context.Background(), calc, nil, nil)

	board.Resolve(context.Background(), auth, "C1", []models.ShippingOption{calculated("A"), calculated("B")})
	calc.release("C1", "B", 7)
	assert.Eventually(t, func() bool {
		_, ok := board.Snapshot().Price("B")
		return ok
	}, time.Second, 5*time.Millisecond)

	// cart switches before A answers
	board.Resolve(context.Background(), auth, "C2", []models.ShippingOption{calculated("A")})
	snap := board.Snapshot()
	assert.Equal(t, "C2", snap.CartID)
	_, hasB := snap.Price("B")
	assert.False(t, hasB)

	calc.release("C1", "A", 99)
	time.Sleep(20 * time.Millisecond)

	snap = board.Snapshot()
	_, ok := snap.Price("A")
	assert.False(t, ok, "C1 result must not populate C2")
	assert.True(t, snap.IsPending("A"))

	calc.release("C2", "A", 4)
	assert.Eventually(t, func() bool {
		r, ok := board.Snapshot().Price("A")
		return ok && r.Amount == 4
	}, time.Second, 5*time.Millisecond)
	board.Close()
}

func TestPriceBoard_InvalidateDropsInFlight(t *testing.T) {
	calc := newGatedCalculator()
	board := services.NewPriceBoard(context.Background(), calc, nil, nil)

	board.Resolve(context.Background(), auth, "C1", []models.ShippingOption{calculated("A")})
	gen := board.Snapshot().Generation
	board.Invalidate()

	calc.release("C1", "A", 5)
	board.Close()

	snap := board.Snapshot()
	assert.Greater(t, snap.Generation, gen)
	assert.Empty(t, snap.Prices)
	assert.False(t, snap.Resolving())

	// the same batch can be started again after invalidation
	assert.True(t, board.Resolve(context.Background(), auth, "C1", []models.ShippingOption{calculated("A")}))
	board.Close()
}

func TestPriceBoard_FailedCalculationIsNotZero(t *testing.T) {
	calc := newGatedCalculator()
	board := services.NewPriceBoard(context.Background(), calc, nil, nil)

	board.Resolve(context.Background(), auth, "C1", []models.ShippingOption{calculated("A")})
	calc.release("C1", "A", -1)
	assert.Eventually(t, func() bool { return !board.Snapshot().Resolving() }, time.Second, 5*time.Millisecond)

	display := services.DisplayPrice(calculated("A"), board.Snapshot(), "C1", "EUR")
	assert.Equal(t, models.PriceUnavailable, display.State)
	assert.Equal(t, "-", display.Text)
	board.Close()
}

func TestPriceBoard_SnapshotOfOtherCartIsNotShown(t *testing.T) {
	calc := newGatedCalculator()
	board := services.NewPriceBoard(context.Background(), calc, nil, nil)
	defer board.Close()
	defer calc.release("C1", "A", 1)

	opts := []models.ShippingOption{calculated("A"), flat("F", 5)}

	// request one resolves C1, a concurrent request on the same session switches to C2
	board.Resolve(context.Background(), auth, "C1", opts)
	board.Resolve(context.Background(), auth, "C2", opts)
	calc.release("C2", "A", 42)
	assert.Eventually(t, func() bool { return !board.Snapshot().Resolving() }, time.Second, 5*time.Millisecond)

	snap := board.Snapshot()
	assert.Equal(t, models.PricePending, services.DisplayPrice(calculated("A"), snap, "C1", "EUR").State)
	assert.Equal(t, "EUR 5.00", services.DisplayPrice(flat("F", 5), snap, "C1", "EUR").Text)
	assert.True(t, snap.ResolvingFor("C1", opts))
	assert.False(t, snap.ResolvingFor("C1", []models.ShippingOption{flat("F", 5)}))

	assert.Equal(t, "EUR 42.00", services.DisplayPrice(calculated("A"), snap, "C2", "EUR").Text)
	assert.False(t, snap.ResolvingFor("C2", opts))
}

// contextCalculator records what the calculation context carried.
type contextCalculator struct {
	mu        sync.Mutex
	requestID string
	ctxErr    error
}

func (c *contextCalculator) CalculatePrice(ctx context.Context, _ clients.RequestAuth, optionID, _ string) models.PriceResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestID = logger.RequestIDFrom(ctx)
	c.ctxErr = ctx.Err()
	return models.PriceResult{OptionID: optionID, Amount: 7, Status: models.PriceResolved}
}

func TestPriceBoard_BatchCarriesRequestIDButNotCancellation(t *testing.T) {
	calc := &contextCalculator{}
	board := services.NewPriceBoard(context.Background(), calc, nil, nil)
	defer board.Close()

	reqCtx, cancel := context.WithCancel(logger.WithRequestID(context.Background(), "req-42"))
	cancel() // the request is over before the calculation runs

	board.Resolve(reqCtx, clients.RequestAuth{}, "C1", []models.ShippingOption{calculated("A")})
	require.Eventually(t, func() bool { return !board.Snapshot().Resolving() }, time.Second, 5*time.Millisecond)

	calc.mu.Lock()
	defer calc.mu.Unlock()
	assert.Equal(t, "req-42", calc.requestID)
	assert.NoError(t, calc.ctxErr)

	r, ok := board.Snapshot().Price("A")
	require.True(t, ok)
	assert.Equal(t, 7.0, r.Amount)
}
