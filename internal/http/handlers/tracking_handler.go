// README: Public order tracking by human-facing order number.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bistro/internal/modules/order"
)

type TrackingHandler struct {
	order *order.Service
}

func NewTrackingHandler(svc *order.Service) *TrackingHandler {
	return &TrackingHandler{order: svc}
}

func (h *TrackingHandler) Track(c *gin.Context) {
	number := c.Param("orderNumber")
	t, err := h.order.TrackByNumber(c.Request.Context(), number)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	body := gin.H{"order": orderBody(t.Order)}
	if t.DriverLocation != nil {
		body["driver_location"] = t.DriverLocation
	}
	if t.DriverName != "" {
		body["driver_name"] = t.DriverName
	}
	if t.ETA != nil {
		body["eta_seconds"] = int(t.ETA.Seconds())
	}
	writeJSON(c, http.StatusOK, body)
}
