package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Spare-Link/storefront/apperrors"
	applog "github.com/Spare-Link/storefront/logger"
	"github.com/Spare-Link/storefront/middleware"
	"github.com/Spare-Link/storefront/models"
	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"github.com/Spare-Link/storefront/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetricsRecorder is the part of the metrics client the controller uses.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// CheckoutController serves the checkout page view-models.
type CheckoutController struct {
	carts       services.CartService
	fulfillment services.FulfillmentService
	addresses   *services.AddressService
	delivery    *services.DeliveryService
	sessions    *services.SessionStore
	metrics     MetricsRecorder
	logger      *zap.Logger
}

// NewCheckoutController wires the handlers. metrics may be nil.
func NewCheckoutController(
	carts services.CartService,
	fulfillment services.FulfillmentService,
	addresses *services.AddressService,
	delivery *services.DeliveryService,
	sessions *services.SessionStore,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *CheckoutController {
	return &CheckoutController{
		carts:       carts,
		fulfillment: fulfillment,
		addresses:   addresses,
		delivery:    delivery,
		sessions:    sessions,
		metrics:     metrics,
		logger:      logger,
	}
}

// recordSubmitFailure counts a submission the backend rejected or failed.
func (cc *CheckoutController) recordSubmitFailure(step models.Step) {
	if cc.metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cc.metrics.RecordCount(ctx, awspkg.MetricCheckoutSubmitFailed, map[string]string{"Step": string(step)})
	}()
}

func (cc *CheckoutController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Checkout handles GET /bff/checkout?step=
func (cc *CheckoutController) Checkout(c *gin.Context) {
	ctx := c.Request.Context()
	auth := middleware.GetAuth(c)
	cartID := middleware.GetCartID(c)
	sess := cc.sessions.Get(middleware.GetSessionID(c))

	cart, err := cc.carts.RetrieveCart(ctx, auth, cartID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var (
		options  []models.ShippingOption
		free     []models.FreeShippingPrice
		customer *models.Customer
	)
	// none of these fail the page; a missing listing renders as empty
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		options = cc.fulfillment.ListCartShippingOptions(gctx, auth, cartID)
		return nil
	})
	g.Go(func() error {
		free = cc.fulfillment.ListCartFreeShippingPrices(gctx, auth, cartID)
		return nil
	})
	g.Go(func() error {
		customer = cc.carts.RetrieveCustomer(gctx, auth)
		return nil
	})
	_ = g.Wait()

	step := services.DeriveStep(cart, models.ParseStep(c.Query("step")))
	sess.ObserveCart(cartID)
	sess.ObserveStep(step)
	sess.Prices.Resolve(ctx, auth, cartID, options)
	snap := sess.Prices.Snapshot()

	if free == nil {
		free = []models.FreeShippingPrice{}
	}

	c.JSON(http.StatusOK, gin.H{
		"cart":                 cart,
		"step":                 step,
		"steps":                services.StepViews(cart, step),
		"can_edit":             services.CanEdit(cart),
		"same_as_billing":      services.DefaultSameAsBilling(cart),
		"email":                services.DefaultEmail(cart, customer),
		"delivery_options":     deliveryOptions(cart, cartID, options, snap),
		"free_shipping_prices": free,
		"resolving":            snap.ResolvingFor(cartID, options),
		"submissions":          sess.SubmissionStates(),
		"timestamp":            time.Now().UTC(),
	})
}

// ShippingOptions handles GET /bff/checkout/shipping-options. The page polls
// it while calculated prices are resolving.
func (cc *CheckoutController) ShippingOptions(c *gin.Context) {
	ctx := c.Request.Context()
	auth := middleware.GetAuth(c)
	cartID := middleware.GetCartID(c)
	sess := cc.sessions.Get(middleware.GetSessionID(c))

	cart, err := cc.carts.RetrieveCart(ctx, auth, cartID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	options := cc.fulfillment.ListCartShippingOptions(ctx, auth, cartID)
	sess.ObserveCart(cartID)
	sess.Prices.Resolve(ctx, auth, cartID, options)
	snap := sess.Prices.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"shipping_options": deliveryOptions(cart, cartID, options, snap),
		"resolving":        snap.ResolvingFor(cartID, options),
	})
}

// SetAddresses handles POST /bff/checkout/addresses
func (cc *CheckoutController) SetAddresses(c *gin.Context) {
	var form models.AddressForm
	if err := c.ShouldBindJSON(&form); err != nil {
		_ = c.Error(apperrors.InvalidRequest(err))
		return
	}

	ctx := c.Request.Context()
	auth := middleware.GetAuth(c)
	cartID := middleware.GetCartID(c)
	sess := cc.sessions.Get(middleware.GetSessionID(c))

	// the lock check must see approvals made since the page was cached
	current, err := cc.carts.RetrieveCartFresh(ctx, auth, cartID)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.Code, gin.H{"error": appErr.Message, "form": form})
		return
	}
	if current.HasShippingAddress() && !services.CanEdit(current) {
		c.JSON(http.StatusConflict, gin.H{"error": services.ErrEditLocked.Error(), "form": form})
		return
	}

	var cart *models.Cart
	err = sess.Submission(models.StepAddress).Run(ctx, func(ctx context.Context) error {
		var runErr error
		cart, runErr = cc.addresses.SetAddresses(ctx, auth, cartID, form)
		return runErr
	})

	var vErr *services.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "fields": vErr.Fields, "form": form})
		return
	default:
		cc.recordSubmitFailure(models.StepAddress)
		applog.FromContext(ctx, cc.logger).Warn("Address submission failed", zap.String("cart_id", cartID), zap.Error(err))
		// echo the form back so nothing the shopper typed is lost
		c.JSON(http.StatusBadGateway, gin.H{"error": services.UserMessage(err), "form": form})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart":      cart,
		"next_step": services.Advance(models.StepAddress),
	})
}

// SetShippingMethod handles POST /bff/checkout/shipping-method
func (cc *CheckoutController) SetShippingMethod(c *gin.Context) {
	var req models.SetShippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequest(err))
		return
	}

	ctx := c.Request.Context()
	auth := middleware.GetAuth(c)
	cartID := middleware.GetCartID(c)
	sess := cc.sessions.Get(middleware.GetSessionID(c))

	current, err := cc.carts.RetrieveCartFresh(ctx, auth, cartID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(current.ShippingMethods) > 0 && !services.CanEdit(current) {
		c.JSON(http.StatusConflict, gin.H{"error": services.ErrEditLocked.Error()})
		return
	}

	var cart *models.Cart
	err = sess.Submission(models.StepDelivery).Run(ctx, func(ctx context.Context) error {
		var runErr error
		cart, runErr = cc.delivery.SetShippingMethod(ctx, auth, cartID, req.ShippingOptionID)
		return runErr
	})
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		cc.recordSubmitFailure(models.StepDelivery)
		applog.FromContext(ctx, cc.logger).Warn("Setting shipping method failed",
			zap.String("cart_id", cartID),
			zap.String("shipping_option_id", req.ShippingOptionID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": services.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

// ContinueDelivery handles POST /bff/checkout/delivery/continue
func (cc *CheckoutController) ContinueDelivery(c *gin.Context) {
	cart, err := cc.carts.RetrieveCart(c.Request.Context(), middleware.GetAuth(c), middleware.GetCartID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	next, err := cc.delivery.Continue(cart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_step": next})
}

// Edit handles POST /bff/checkout/edit
func (cc *CheckoutController) Edit(c *gin.Context) {
	var req models.EditStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.InvalidRequest(err))
		return
	}

	cart, err := cc.carts.RetrieveCart(c.Request.Context(), middleware.GetAuth(c), middleware.GetCartID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	next, err := services.Edit(cart, models.Step(req.Step))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"next_step": next})
	case errors.Is(err, services.ErrUnknownStep):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}

// CarrierRates handles GET /bff/checkout/carrier-rates?carrier_account_id=
func (cc *CheckoutController) CarrierRates(c *gin.Context) {
	carrierAccountID := c.Query("carrier_account_id")
	if carrierAccountID == "" {
		_ = c.Error(apperrors.New(http.StatusBadRequest, "carrier_account_id is required", nil))
		return
	}

	quote := cc.fulfillment.GetShippoRates(c.Request.Context(), middleware.GetAuth(c), carrierAccountID, middleware.GetCartID(c))
	if quote == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "carrier rates unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rates":       quote.Rates,
		"shipment_id": quote.ShipmentID,
		"quoted_at":   quote.QuotedAt,
	})
}

func deliveryOptions(cart *models.Cart, cartID string, options []models.ShippingOption, snap services.PriceSnapshot) []models.DeliveryOptionView {
	selected, hasSelection := cart.ShippingMethods.Last()
	views := make([]models.DeliveryOptionView, 0, len(options))
	for _, opt := range options {
		v := models.DeliveryOptionView{
			ShippingOption: opt,
			Selected:       hasSelection && selected.ShippingOptionID == opt.ID,
			Price:          services.DisplayPrice(opt, snap, cartID, cart.CurrencyCode),
		}
		if opt.IsPickup && opt.PickupLocation != nil {
			v.PickupAddress = opt.PickupLocation.Address.FormatAddress()
		}
		views = append(views, v)
	}
	return views
}
