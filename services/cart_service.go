package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/Spare-Link/storefront/apperrors"
	"github.com/Spare-Link/storefront/clients"
	"github.com/Spare-Link/storefront/models"
	"go.uber.org/zap"
)

// CartService reads and mutates the backend cart. Every mutation revalidates
// the cached responses that depend on the cart.
type CartService interface {
	RetrieveCart(ctx context.Context, auth clients.RequestAuth, cartID string) (*models.Cart, error)
	// RetrieveCartFresh bypasses the response cache. Used where a stale
	// approval status would let a locked checkout be changed.
	RetrieveCartFresh(ctx context.Context, auth clients.RequestAuth, cartID string) (*models.Cart, error)
	UpdateCart(ctx context.Context, auth clients.RequestAuth, cartID string, body any) (*models.Cart, error)
	SetShippingMethod(ctx context.Context, auth clients.RequestAuth, cartID, optionID string) (*models.Cart, error)
	RetrieveCustomer(ctx context.Context, auth clients.RequestAuth) *models.Customer
}

type cartServiceImpl struct {
	api    CommerceAPI
	logger *zap.Logger
}

func NewCartService(api CommerceAPI, logger *zap.Logger) CartService {
	return &cartServiceImpl{api: api, logger: logger}
}

func cartPath(cartID string) string {
	return "/store/carts/" + url.PathEscape(cartID)
}

func (s *cartServiceImpl) RetrieveCart(ctx context.Context, auth clients.RequestAuth, cartID string) (*models.Cart, error) {
	return s.retrieveCart(ctx, auth, cartID, clients.CacheForce)
}

func (s *cartServiceImpl) RetrieveCartFresh(ctx context.Context, auth clients.RequestAuth, cartID string) (*models.Cart, error) {
	return s.retrieveCart(ctx, auth, cartID, clients.CacheNoStore)
}

func (s *cartServiceImpl) retrieveCart(ctx context.Context, auth clients.RequestAuth, cartID string, policy clients.CachePolicy) (*models.Cart, error) {
	var resp models.CartResponse
	err := s.api.Fetch(ctx, http.MethodGet, cartPath(cartID), clients.FetchOptions{
		Auth:  auth,
		Cache: policy,
		Tags:  []string{TagCarts},
	}, &resp)
	if err != nil {
		var upErr *clients.UpstreamError
		if errors.As(err, &upErr) && upErr.Status == http.StatusNotFound {
			return nil, apperrors.New(http.StatusNotFound, "Cart not found", err)
		}
		return nil, apperrors.Wrap(apperrors.ErrBadGateway, err)
	}
	return &resp.Cart, nil
}

func (s *cartServiceImpl) UpdateCart(ctx context.Context, auth clients.RequestAuth, cartID string, body any) (*models.Cart, error) {
	var resp models.CartResponse
	err := s.api.Fetch(ctx, http.MethodPost, cartPath(cartID), clients.FetchOptions{
		Body: body,
		Auth: auth,
	}, &resp)
	if err != nil {
		return nil, err
	}
	s.api.Revalidate(ctx, auth, TagCarts, TagFulfillment, TagFreeShipping)
	return &resp.Cart, nil
}

func (s *cartServiceImpl) SetShippingMethod(ctx context.Context, auth clients.RequestAuth, cartID, optionID string) (*models.Cart, error) {
	var resp models.CartResponse
	err := s.api.Fetch(ctx, http.MethodPost, cartPath(cartID)+"/shipping-methods", clients.FetchOptions{
		Body: map[string]string{"option_id": optionID},
		Auth: auth,
	}, &resp)
	if err != nil {
		return nil, err
	}
	s.api.Revalidate(ctx, auth, TagCarts, TagFulfillment, TagFreeShipping)
	return &resp.Cart, nil
}

// RetrieveCustomer returns the signed-in customer, or nil for guests.
func (s *cartServiceImpl) RetrieveCustomer(ctx context.Context, auth clients.RequestAuth) *models.Customer {
	if auth.Token == "" {
		return nil
	}
	var resp models.CustomerResponse
	err := s.api.Fetch(ctx, http.MethodGet, "/store/customers/me", clients.FetchOptions{
		Auth:  auth,
		Cache: clients.CacheForce,
		Tags:  []string{"customers"},
	}, &resp)
	if err != nil {
		s.logger.Debug("No customer for request", zap.Error(err))
		return nil
	}
	return &resp.Customer
}
