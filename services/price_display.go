package services

import (
	"math"
	"strings"

	"github.com/Spare-Link/storefront/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const unavailablePrice = "-"

// DisplayPrice decides how the price of a delivery option of cartID is shown.
// Calculated prices from a snapshot of another cart are never used.
func DisplayPrice(opt models.ShippingOption, snap PriceSnapshot, cartID, currencyCode string) models.PriceDisplay {
	if opt.IsFreePickup() {
		return models.PriceDisplay{State: models.PriceHidden}
	}

	if !opt.IsCalculated() {
		if opt.Amount == nil || math.IsNaN(*opt.Amount) || math.IsInf(*opt.Amount, 0) {
			return models.PriceDisplay{State: models.PriceUnavailable, Text: unavailablePrice}
		}
		return models.PriceDisplay{State: models.PriceAmount, Text: FormatAmount(*opt.Amount, currencyCode)}
	}

	if snap.CartID != cartID {
		return models.PriceDisplay{State: models.PricePending}
	}
	if res, ok := snap.Price(opt.ID); ok && res.Resolved() && !math.IsNaN(res.Amount) && !math.IsInf(res.Amount, 0) {
		return models.PriceDisplay{State: models.PriceAmount, Text: FormatAmount(res.Amount, currencyCode)}
	}
	if snap.IsPending(opt.ID) {
		return models.PriceDisplay{State: models.PricePending}
	}
	return models.PriceDisplay{State: models.PriceUnavailable, Text: unavailablePrice}
}

// FormatAmount renders amount with the minor-unit scale of the currency,
// e.g. "EUR 12.50" or "JPY 1200". Unknown currencies use two decimals.
func FormatAmount(amount float64, currencyCode string) string {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}

	text := decimal.NewFromFloat(amount).StringFixed(int32(scale))
	if code == "" {
		return text
	}
	return code + " " + text
}
