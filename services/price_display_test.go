package services_test

import (
	"testing"

	"github.com/Spare-Link/storefront/models"
	"github.com/Spare-Link/storefront/services"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "EUR 12.50", services.FormatAmount(12.5, "eur"))
	assert.Equal(t, "JPY 1200", services.FormatAmount(1200, "JPY"))
	assert.Equal(t, "USD 0.10", services.FormatAmount(0.1, "usd"))
	assert.Equal(t, "7.00", services.FormatAmount(7, ""))
	assert.Equal(t, "XYZ 3.20", services.FormatAmount(3.2, "xyz"))
}

func TestDisplayPrice(t *testing.T) {
	zero := 0.0
	snap := services.PriceSnapshot{
		CartID: "cart_1",
		Prices: map[string]models.PriceResult{
			"calc_ok":   {OptionID: "calc_ok", Amount: 4.2, Status: models.PriceResolved},
			"calc_zero": {OptionID: "calc_zero", Amount: 0, Status: models.PriceResolved},
			"calc_fail": {OptionID: "calc_fail", Status: models.PriceFailed},
		},
		Pending: map[string]struct{}{"calc_wait": {}},
	}

	tests := []struct {
		name string
		opt  models.ShippingOption
		want models.PriceDisplay
	}{
		{"flat", flat("f", 9.99), models.PriceDisplay{State: models.PriceAmount, Text: "EUR 9.99"}},
		{"free pickup hidden", models.ShippingOption{ID: "p", PriceType: models.PriceTypeFlat, Amount: &zero, IsPickup: true}, models.PriceDisplay{State: models.PriceHidden}},
		{"free delivery shown", flat("f0", 0), models.PriceDisplay{State: models.PriceAmount, Text: "EUR 0.00"}},
		{"calculated resolved", calculated("calc_ok"), models.PriceDisplay{State: models.PriceAmount, Text: "EUR 4.20"}},
		{"calculated genuine zero", calculated("calc_zero"), models.PriceDisplay{State: models.PriceAmount, Text: "EUR 0.00"}},
		{"calculated failed", calculated("calc_fail"), models.PriceDisplay{State: models.PriceUnavailable, Text: "-"}},
		{"calculated pending", calculated("calc_wait"), models.PriceDisplay{State: models.PricePending}},
		{"calculated unknown", calculated("calc_none"), models.PriceDisplay{State: models.PriceUnavailable, Text: "-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.DisplayPrice(tt.opt, snap, "cart_1", "EUR"))
		})
	}
}

func TestDisplayPrice_OtherCartSnapshot(t *testing.T) {
	snap := services.PriceSnapshot{
		CartID: "cart_2",
		Prices: map[string]models.PriceResult{"calc_ok": {OptionID: "calc_ok", Amount: 4.2, Status: models.PriceResolved}},
	}

	assert.Equal(t, models.PriceDisplay{State: models.PricePending}, services.DisplayPrice(calculated("calc_ok"), snap, "cart_1", "EUR"))
	assert.Equal(t, "EUR 9.99", services.DisplayPrice(flat("f", 9.99), snap, "cart_1", "EUR").Text)
}
