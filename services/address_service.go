package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/Spare-Link/storefront/clients"
	"github.com/Spare-Link/storefront/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ValidationError lists the invalid fields of a submitted form by JSON path.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

// AddressService persists the address step in a single cart update.
type AddressService struct {
	carts    CartService
	events   EventPublisher
	validate *validator.Validate
	logger   *zap.Logger
}

func NewAddressService(carts CartService, events EventPublisher, logger *zap.Logger) *AddressService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &AddressService{carts: carts, events: events, validate: v, logger: logger}
}

// Validate checks the form without calling the backend. The billing address
// is only checked when it is not copied from shipping. The email is trimmed
// in place first.
func (s *AddressService) Validate(form *models.AddressForm) error {
	form.Email = strings.TrimSpace(form.Email)
	fields := make(map[string]string)
	s.collect(fields, "", s.validate.Struct(form))
	if !form.SameAsBilling {
		if form.BillingAddress == nil {
			fields["billing_address"] = "required"
		} else {
			s.collect(fields, "billing_address.", s.validate.Struct(form.BillingAddress))
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *AddressService) collect(fields map[string]string, prefix string, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return
	}
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		fields[prefix+path] = fe.Tag()
	}
}

// SetAddresses stores email, shipping and billing address at once and
// returns the re-read cart. With SameAsBilling the billing address is a copy
// of the shipping address.
func (s *AddressService) SetAddresses(ctx context.Context, auth clients.RequestAuth, cartID string, form models.AddressForm) (*models.Cart, error) {
	if err := s.Validate(&form); err != nil {
		return nil, err
	}

	shipping := form.ShippingAddress
	billing := shipping
	if !form.SameAsBilling {
		billing = *form.BillingAddress
	}

	body := map[string]any{
		"email":            form.Email,
		"shipping_address": shipping,
		"billing_address":  billing,
	}
	if _, err := s.carts.UpdateCart(ctx, auth, cartID, body); err != nil {
		return nil, fmt.Errorf("update cart addresses: %w", err)
	}

	cart, err := s.carts.RetrieveCart(ctx, auth, cartID)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.events, NewCheckoutEvent(models.EventAddressesSet, cartID, models.StepAddress, map[string]string{
		"same_as_billing": fmt.Sprintf("%t", form.SameAsBilling),
		"country_code":    shipping.CountryCode,
	}), s.logger)
	return cart, nil
}

// CompareAddresses reports whether two addresses are field-wise equal.
// A nil address equals an address with every field empty.
func CompareAddresses(a, b *models.Address) bool {
	var left, right models.Address
	if a != nil {
		left = *a
	}
	if b != nil {
		right = *b
	}
	return left == right
}

// DefaultSameAsBilling seeds the same-as-billing toggle for a cart.
func DefaultSameAsBilling(cart *models.Cart) bool {
	if cart != nil && cart.ShippingAddress != nil && cart.BillingAddress != nil {
		return CompareAddresses(cart.ShippingAddress, cart.BillingAddress)
	}
	return true
}

// DefaultEmail prefers the cart email over the signed-in customer's.
func DefaultEmail(cart *models.Cart, customer *models.Customer) string {
	if cart != nil && cart.Email != "" {
		return cart.Email
	}
	if customer != nil {
		return customer.Email
	}
	return ""
}
