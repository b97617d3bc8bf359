package services

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/Spare-Link/storefront/clients"
	applog "github.com/Spare-Link/storefront/logger"
	"github.com/Spare-Link/storefront/models"
	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"go.uber.org/zap"
)

// Cache tags used to revalidate commerce API responses after mutations.
const (
	TagCarts        = "carts"
	TagFulfillment  = "fulfillment"
	TagFreeShipping = "freeShipping"
)

// CommerceAPI is the part of the commerce client the services depend on.
type CommerceAPI interface {
	Fetch(ctx context.Context, method, path string, opts clients.FetchOptions, out any) error
	Revalidate(ctx context.Context, auth clients.RequestAuth, tags ...string)
}

// QuoteRecorder keeps an audit trail of carrier quotes.
type QuoteRecorder interface {
	Save(ctx context.Context, cartID, carrierAccountID string, quote *models.CarrierQuote) error
}

// FulfillmentService lists and prices the delivery options of a cart.
// None of its methods fail loudly: a missing listing is nil and a failed
// calculation is a failed PriceResult.
type FulfillmentService interface {
	ListCartShippingOptions(ctx context.Context, auth clients.RequestAuth, cartID string) []models.ShippingOption
	ListCartFreeShippingPrices(ctx context.Context, auth clients.RequestAuth, cartID string) []models.FreeShippingPrice
	CalculatePrice(ctx context.Context, auth clients.RequestAuth, optionID, cartID string) models.PriceResult
	GetShippoRates(ctx context.Context, auth clients.RequestAuth, carrierAccountID, cartID string) *models.CarrierQuote
}

type fulfillmentServiceImpl struct {
	api     CommerceAPI
	quotes  QuoteRecorder
	metrics *awspkg.MetricsClient
	logger  *zap.Logger
	now     func() time.Time
}

// NewFulfillmentService creates a FulfillmentService. quotes and metrics may be nil.
func NewFulfillmentService(api CommerceAPI, quotes QuoteRecorder, metrics *awspkg.MetricsClient, logger *zap.Logger) FulfillmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fulfillmentServiceImpl{
		api:     api,
		quotes:  quotes,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *fulfillmentServiceImpl) ListCartShippingOptions(ctx context.Context, auth clients.RequestAuth, cartID string) []models.ShippingOption {
	var resp models.ShippingOptionListResponse
	err := s.api.Fetch(ctx, http.MethodGet, "/store/shipping-options", clients.FetchOptions{
		Query: url.Values{"cart_id": {cartID}},
		Auth:  auth,
		Cache: clients.CacheForce,
		Tags:  []string{TagFulfillment},
	}, &resp)
	if err != nil {
		applog.FromContext(ctx, s.logger).Warn("Listing shipping options failed", zap.String("cart_id", cartID), zap.Error(err))
		return nil
	}
	return resp.ShippingOptions
}

func (s *fulfillmentServiceImpl) ListCartFreeShippingPrices(ctx context.Context, auth clients.RequestAuth, cartID string) []models.FreeShippingPrice {
	var resp models.FreeShippingPriceListResponse
	err := s.api.Fetch(ctx, http.MethodGet, "/store/free-shipping/prices", clients.FetchOptions{
		Query: url.Values{"cart_id": {cartID}},
		Auth:  auth,
		Cache: clients.CacheForce,
		Tags:  []string{TagFreeShipping},
	}, &resp)
	if err != nil {
		applog.FromContext(ctx, s.logger).Warn("Listing free shipping prices failed", zap.String("cart_id", cartID), zap.Error(err))
		return nil
	}
	return resp.Prices
}

// CalculatePrice asks the backend for the price of a calculated option.
// The response is trusted only if it names the requested option and carries a
// finite amount.
func (s *fulfillmentServiceImpl) CalculatePrice(ctx context.Context, auth clients.RequestAuth, optionID, cartID string) models.PriceResult {
	failed := models.PriceResult{OptionID: optionID, Status: models.PriceFailed}

	var resp struct {
		ShippingOption struct {
			ID     string   `json:"id"`
			Amount *float64 `json:"amount"`
		} `json:"shipping_option"`
	}
	err := s.api.Fetch(ctx, http.MethodPost, "/store/shipping-options/"+url.PathEscape(optionID)+"/calculate", clients.FetchOptions{
		Body: map[string]string{"cart_id": cartID},
		Auth: auth,
	}, &resp)
	if err != nil {
		applog.FromContext(ctx, s.logger).Warn("Shipping price calculation failed",
			zap.String("option_id", optionID),
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
		return failed
	}

	amount := resp.ShippingOption.Amount
	if resp.ShippingOption.ID != optionID || amount == nil || math.IsNaN(*amount) || math.IsInf(*amount, 0) {
		applog.FromContext(ctx, s.logger).Warn("Discarding malformed price calculation",
			zap.String("option_id", optionID),
			zap.String("returned_id", resp.ShippingOption.ID),
		)
		return failed
	}
	return models.PriceResult{OptionID: optionID, Amount: *amount, Status: models.PriceResolved}
}

// GetShippoRates fetches a fresh carrier quote. nil means rates are unavailable.
func (s *fulfillmentServiceImpl) GetShippoRates(ctx context.Context, auth clients.RequestAuth, carrierAccountID, cartID string) *models.CarrierQuote {
	var resp models.ShippoRatesResponse
	err := s.api.Fetch(ctx, http.MethodGet, "/store/shippo/rates", clients.FetchOptions{
		Query: url.Values{
			"carrier_account_id": {carrierAccountID},
			"cart_id":            {cartID},
		},
		Auth:  auth,
		Cache: clients.CacheNoStore,
	}, &resp)
	if err != nil {
		applog.FromContext(ctx, s.logger).Warn("Carrier rate quote failed",
			zap.String("carrier_account_id", carrierAccountID),
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
		_ = s.metrics.RecordCount(ctx, awspkg.MetricCarrierQuoteFailed, map[string]string{"CarrierAccount": carrierAccountID})
		return nil
	}

	quote := &models.CarrierQuote{
		Rates:      resp.Rates,
		ShipmentID: resp.ShipmentID,
		QuotedAt:   s.now().UTC(),
	}
	if quote.Rates == nil {
		quote.Rates = []models.ShippoRate{}
	}

	if s.quotes != nil {
		if err := s.quotes.Save(ctx, cartID, carrierAccountID, quote); err != nil {
			applog.FromContext(ctx, s.logger).Warn("Failed to record carrier quote", zap.String("cart_id", cartID), zap.Error(err))
		}
	}
	return quote
}
