package services

import (
	"context"

	"github.com/Spare-Link/storefront/clients"
	"github.com/Spare-Link/storefront/models"
	"go.uber.org/zap"
)

// DeliveryService applies the shopper's delivery choice to the cart.
type DeliveryService struct {
	carts  CartService
	events EventPublisher
	logger *zap.Logger
}

func NewDeliveryService(carts CartService, events EventPublisher, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{carts: carts, events: events, logger: logger}
}

// SetShippingMethod appends optionID to the cart's shipping methods. The
// backend keeps earlier entries, so the selection is always the last one.
func (s *DeliveryService) SetShippingMethod(ctx context.Context, auth clients.RequestAuth, cartID, optionID string) (*models.Cart, error) {
	cart, err := s.carts.SetShippingMethod(ctx, auth, cartID, optionID)
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, s.events, NewCheckoutEvent(models.EventShippingMethodSet, cartID, models.StepDelivery, map[string]string{
		"shipping_option_id": optionID,
	}), s.logger)
	return cart, nil
}

// Continue returns the step to move to once a delivery method is selected.
func (s *DeliveryService) Continue(cart *models.Cart) (models.Step, error) {
	if _, ok := cart.ShippingMethods.Last(); !ok {
		return "", ErrNoShippingMethod
	}
	return Advance(models.StepDelivery), nil
}
