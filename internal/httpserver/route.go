package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	middleware "github.com/Skotchmaster/game_store/pkg/middleware/auth"
)

// webhookBodyLimit bounds PayPal webhook payloads; larger bodies get 413.
const webhookBodyLimit = "1M"

type Deps struct {
	AuthHandler    *AuthHTTP
	CatalogHandler *CatalogHTTP
	OrderHandler   *OrderHTTP
	PaymentHandler *PaymentHTTP
	UserHandler    *UserHTTP
	JWTSecret      []byte
	// Ready reports whether the database answers.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAuthMiddleware(d.JWTSecret)

	auth := e.Group("/auth")
	auth.POST("/registro", d.AuthHandler.Register, authMW.OptionalAuth)
	auth.POST("/login", d.AuthHandler.Login)
	auth.GET("/me", d.AuthHandler.Me, authMW.RequireAuth)
	auth.PUT("/me", d.AuthHandler.UpdateMe, authMW.RequireAuth)
	auth.DELETE("/me", d.AuthHandler.DeleteMe, authMW.RequireAuth)

	products := e.Group("/productos")
	products.GET("", d.CatalogHandler.GetProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)
	products.POST("", d.CatalogHandler.CreateProduct, authMW.RequireAdmin)
	products.PUT("/:id", d.CatalogHandler.PatchProduct, authMW.RequireAdmin)
	products.DELETE("/:id", d.CatalogHandler.DeleteProduct, authMW.RequireAdmin)

	orders := e.Group("/pedidos", authMW.RequireAuth)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("/mis-pedidos", d.OrderHandler.MyOrders)
	orders.PUT("/:id/cancelar", d.OrderHandler.CancelOrder)
	orders.PUT("/:id/direccion", d.OrderHandler.UpdateAddress)

	paypal := e.Group("/pagos/paypal")
	paypal.POST("/crear-orden", d.PaymentHandler.CreateOrder, authMW.RequireAuth)
	paypal.GET("/capturar-orden", d.PaymentHandler.CaptureOrder)
	paypal.GET("/cancelar-orden", d.PaymentHandler.CancelOrder)
	paypal.POST("/webhook", d.PaymentHandler.Webhook, echomw.BodyLimit(webhookBodyLimit))

	admin := e.Group("/admin", authMW.RequireAdmin)
	admin.GET("/usuarios", d.UserHandler.ListUsers)
	admin.GET("/usuarios/:id", d.UserHandler.GetUser)
	admin.PUT("/usuarios/:id", d.UserHandler.UpdateUser)
	admin.DELETE("/usuarios/:id", d.UserHandler.DeleteUser)
}
