package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Deps struct {
	Storefront *StorefrontHTTP
	Ready      func() error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, err.Error())
			}
		}
		return c.NoContent(http.StatusOK)
	})

	v1 := e.Group("/api/v1")

	v1.GET("/state", d.Storefront.GetState)
	v1.POST("/signup", d.Storefront.Signup)
	v1.POST("/login", d.Storefront.Login)
	v1.POST("/logout", d.Storefront.Logout)

	cart := v1.Group("/cart")

	cart.POST("/items", d.Storefront.AddItem)
	cart.PATCH("/items/:index", d.Storefront.ChangeQuantity)
	cart.DELETE("/items/:index", d.Storefront.RemoveItem)
	cart.PATCH("/rows/:id", d.Storefront.ChangeQuantityByID)
	cart.DELETE("/rows/:id", d.Storefront.RemoveItemByID)

	checkout := v1.Group("/checkout")

	checkout.POST("", d.Storefront.ProposeCheckout)
	checkout.POST("/commit", d.Storefront.CommitCheckout)
	checkout.POST("/cancel", d.Storefront.CancelCheckout)

	rewards := v1.Group("/rewards")

	rewards.GET("", d.Storefront.ListRewards)
	rewards.GET("/search", d.Storefront.SearchRewards)
	rewards.POST("/:id/redeem", d.Storefront.ProposeRedeem)
	rewards.POST("/redeem/commit", d.Storefront.CommitRedeem)
	rewards.POST("/redeem/cancel", d.Storefront.CancelRedeem)

	v1.GET("/redemptions", d.Storefront.Redemptions)
	v1.GET("/notifications", d.Storefront.Notifications)
}
