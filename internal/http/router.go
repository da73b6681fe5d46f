// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bistro/internal/http/handlers"
	"bistro/internal/http/middleware"
	"bistro/internal/infra"
	"bistro/internal/logger"
	"bistro/internal/modules/cart"
	"bistro/internal/modules/driver"
	"bistro/internal/modules/menu"
	"bistro/internal/modules/notify"
	"bistro/internal/modules/order"
)

type RouterDeps struct {
	Menu     *menu.Store
	Cart     *cart.Service
	Order    *order.Service
	Orders   cart.OrderReader
	Driver   *driver.Service
	Broker   *notify.Broker
	Verifier infra.TokenVerifier
	Log      *logger.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	menuHandler := handlers.NewMenuHandler(deps.Menu)
	cartHandler := handlers.NewCartHandler(deps.Cart, deps.Orders)
	orderHandler := handlers.NewOrderHandler(deps.Order)
	driverHandler := handlers.NewDriverHandler(deps.Driver)
	trackingHandler := handlers.NewTrackingHandler(deps.Order)
	eventsHandler := handlers.NewEventsHandler(deps.Broker)

	// Guest-friendly routes: a Bearer token is honoured when present, but
	// session-keyed guests pass through.
	open := r.Group("/api", middleware.OptionalAuth(deps.Verifier))
	open.GET("/menu", menuHandler.List)
	open.GET("/cart", cartHandler.Get)
	open.POST("/cart/items", cartHandler.AddItem)
	open.PATCH("/cart/items/:lineId", cartHandler.UpdateLine)
	open.DELETE("/cart/items/:lineId", cartHandler.RemoveLine)
	open.DELETE("/cart", cartHandler.Clear)
	open.POST("/cart/reorder/:orderId", cartHandler.Reorder)
	open.POST("/orders", orderHandler.Checkout)
	open.GET("/orders/:id", orderHandler.Get)
	open.POST("/orders/:id/payment", orderHandler.Pay)
	open.POST("/orders/:id/cancel", orderHandler.Cancel)
	open.POST("/orders/:id/rating", orderHandler.Rate)
	open.GET("/track/:orderNumber", trackingHandler.Track)
	open.GET("/events", eventsHandler.Stream)
	open.POST("/drivers/login", driverHandler.Login)

	// Authenticated routes: staff and driver operations. Registration sits
	// here because the driver record is keyed by the caller's Firebase UID.
	auth := r.Group("/api", middleware.Auth(deps.Verifier))
	auth.POST("/drivers/register", driverHandler.Register)
	auth.PATCH("/menu/:id/availability", menuHandler.SetAvailability)
	auth.POST("/orders/:id/driver", orderHandler.AssignDriver)
	auth.POST("/orders/:id/status", orderHandler.Advance)
	auth.PUT("/drivers/:id/location", driverHandler.UpdateLocation)
	auth.PUT("/drivers/:id/availability", driverHandler.SetAvailability)
	auth.GET("/drivers/active", driverHandler.ListActive)
	auth.DELETE("/drivers/:id", driverHandler.Delete)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
