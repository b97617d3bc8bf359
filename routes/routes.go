package routes

import (
	"time"

	"github.com/Spare-Link/storefront/controllers"
	"github.com/Spare-Link/storefront/middleware"

	"github.com/gin-gonic/gin"
)

type Options struct {
	SessionTTL    time.Duration
	SecureCookies bool
}

func RegisterRoutes(r *gin.Engine, ctrl *controllers.CheckoutController, opts Options) {
	r.GET("/health", ctrl.Health)

	// Every checkout route needs a browser session and a cart
	checkout := r.Group("/bff/checkout")
	checkout.Use(
		middleware.Session(opts.SessionTTL, opts.SecureCookies),
		middleware.Auth(),
		middleware.CartID(),
	)
	{
		checkout.GET("", ctrl.Checkout)
		checkout.GET("/shipping-options", ctrl.ShippingOptions)
		checkout.GET("/carrier-rates", ctrl.CarrierRates)

		checkout.POST("/addresses", ctrl.SetAddresses)
		checkout.POST("/shipping-method", ctrl.SetShippingMethod)
		checkout.POST("/delivery/continue", ctrl.ContinueDelivery)
		checkout.POST("/edit", ctrl.Edit)
	}
}
