package models

import (
	"strings"
	"time"
)

// PriceType tells whether an option carries a static amount or needs a pricing call.
type PriceType string

const (
	PriceTypeFlat       PriceType = "flat"
	PriceTypeCalculated PriceType = "calculated"
)

// PickupAddress is the structured address of a pickup location.
type PickupAddress struct {
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	Province    string `json:"province,omitempty"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
	Company     string `json:"company,omitempty"`
}

type PickupLocation struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Address PickupAddress `json:"address"`
}

// FormatAddress renders "street, street 2, city, postal, province", skipping blanks.
func (a PickupAddress) FormatAddress() string {
	cityLine := a.City
	if a.PostalCode != "" {
		cityLine += ", " + a.PostalCode
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Address1, a.Address2, cityLine, a.Province} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ShippingOption is a delivery method offered for a cart.
type ShippingOption struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	PriceType      PriceType       `json:"price_type"`
	Amount         *float64        `json:"amount,omitempty"`
	IsPickup       bool            `json:"is_pickup,omitempty"`
	PickupLocation *PickupLocation `json:"pickup_location,omitempty"`
}

// IsCalculated reports whether the option needs a pricing call.
func (o ShippingOption) IsCalculated() bool {
	return o.PriceType == PriceTypeCalculated
}

// IsFreePickup is true for pickup options with a flat zero amount.
// Their price is not displayed at all.
func (o ShippingOption) IsFreePickup() bool {
	return o.IsPickup && o.PriceType == PriceTypeFlat && o.Amount != nil && *o.Amount == 0
}

type ShippingOptionListResponse struct {
	ShippingOptions []ShippingOption `json:"shipping_options"`
}

type CalculatedOptionResponse struct {
	ShippingOption ShippingOption `json:"shipping_option"`
}

// PriceStatus distinguishes a resolved price from a failed calculation.
type PriceStatus string

const (
	PriceResolved PriceStatus = "resolved"
	PriceFailed   PriceStatus = "failed"
)

// PriceResult is the outcome of a single price calculation. A failed result
// carries a zero amount that must never be shown as a price.
type PriceResult struct {
	OptionID string      `json:"option_id"`
	Amount   float64     `json:"amount"`
	Status   PriceStatus `json:"status"`
}

func (r PriceResult) Resolved() bool {
	return r.Status == PriceResolved
}

// FreeShippingPrice describes progress towards a free-shipping threshold.
type FreeShippingPrice struct {
	ShippingOptionID    string  `json:"shipping_option_id"`
	CurrencyCode        string  `json:"currency_code,omitempty"`
	CurrentAmount       float64 `json:"current_amount"`
	TargetAmount        float64 `json:"target_amount"`
	TargetRemaining     float64 `json:"target_remaining"`
	RemainingPercentage float64 `json:"remaining_percentage"`
	TargetReached       bool    `json:"target_reached"`
}

type FreeShippingPriceListResponse struct {
	Prices []FreeShippingPrice `json:"prices"`
}

type ServiceLevel struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// ShippoRate is a carrier rate quoted through the Shippo integration.
type ShippoRate struct {
	ID            string       `json:"id"`
	Amount        float64      `json:"amount"`
	Currency      string       `json:"currency"`
	ServiceLevel  ServiceLevel `json:"servicelevel"`
	EstimatedDays *int         `json:"estimated_days,omitempty"`
	DurationTerms string       `json:"duration_terms,omitempty"`
}

type ShippoRatesResponse struct {
	Rates      []ShippoRate `json:"rates"`
	ShipmentID string       `json:"shipment_id"`
	Total      float64      `json:"total"`
}

// CarrierQuote is a fresh set of carrier rates for a cart.
type CarrierQuote struct {
	Rates      []ShippoRate `json:"rates"`
	ShipmentID string       `json:"shipment_id"`
	QuotedAt   time.Time    `json:"quoted_at"`
}
