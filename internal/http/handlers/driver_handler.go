// README: Driver handlers; registration, login, availability, location, listing.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bistro/internal/http/middleware"
	"bistro/internal/modules/driver"
	"bistro/internal/types"
)

type DriverHandler struct {
	driver *driver.Service
}

func NewDriverHandler(svc *driver.Service) *DriverHandler {
	return &DriverHandler{driver: svc}
}

type registerReq struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email"`
	Phone       string `json:"phone" binding:"required"`
	Password    string `json:"password" binding:"required"`
	VehicleInfo string `json:"vehicle_info"`
}

// Register creates a driver record keyed by the caller's Firebase UID; the
// own-id checks on location and availability routes match against that UID.
func (h *DriverHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	d, err := h.driver.Register(c.Request.Context(), driver.RegisterCommand{
		ID:          types.ID(middleware.CallerUID(c)),
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Password:    req.Password,
		VehicleInfo: req.VehicleInfo,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"driver": driverBody(d)})
}

type loginReq struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *DriverHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	d, err := h.driver.Authenticate(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver": driverBody(d)})
}

type locationReq struct {
	Latitude  float64  `json:"latitude" binding:"required"`
	Longitude float64  `json:"longitude" binding:"required"`
	Accuracy  *float64 `json:"accuracy"`
	Timestamp *int64   `json:"timestamp"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	id := c.Param("id")
	// Only the authenticated driver may update their own location.
	if middleware.CallerRole(c) != "driver" {
		writeError(c, http.StatusForbidden, "forbidden: driver role required")
		return
	}
	if middleware.CallerUID(c) != id {
		writeError(c, http.StatusForbidden, "forbidden: id does not match authenticated user")
		return
	}
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	update := driver.LocationUpdate{
		DriverID: types.ID(id),
		Lat:      req.Latitude,
		Lng:      req.Longitude,
		Accuracy: req.Accuracy,
	}
	if req.Timestamp != nil {
		ts := time.UnixMilli(*req.Timestamp)
		update.Timestamp = &ts
	}
	loc, err := h.driver.UpdateLocation(c.Request.Context(), update)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"location": loc})
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	id := c.Param("id")
	if middleware.CallerRole(c) != "driver" && middleware.CallerRole(c) != "staff" {
		writeError(c, http.StatusForbidden, "forbidden: driver or staff role required")
		return
	}
	if middleware.CallerRole(c) == "driver" && middleware.CallerUID(c) != id {
		writeError(c, http.StatusForbidden, "forbidden: id does not match authenticated user")
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.driver.SetAvailability(c.Request.Context(), types.ID(id), *req.Available); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": id, "is_available": *req.Available})
}

func (h *DriverHandler) ListActive(c *gin.Context) {
	if middleware.CallerRole(c) != "staff" {
		writeError(c, http.StatusForbidden, "forbidden: staff role required")
		return
	}
	active, err := h.driver.ListActive(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, len(active))
	for i, a := range active {
		deliveries := make([]gin.H, len(a.Deliveries))
		for j, d := range a.Deliveries {
			deliveries[j] = gin.H{
				"order_id":         d.OrderID,
				"order_number":     d.OrderNumber,
				"status":           d.Status,
				"delivery_address": d.DeliveryAddress,
			}
		}
		body := driverBody(&a.Driver)
		body["deliveries"] = deliveries
		out[i] = body
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": out})
}

func (h *DriverHandler) Delete(c *gin.Context) {
	if middleware.CallerRole(c) != "staff" {
		writeError(c, http.StatusForbidden, "forbidden: staff role required")
		return
	}
	id := c.Param("id")
	if err := h.driver.Delete(c.Request.Context(), types.ID(id)); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

func driverBody(d *driver.Driver) gin.H {
	body := gin.H{
		"id":               d.ID,
		"name":             d.Name,
		"phone":            d.Phone,
		"vehicle_info":     d.VehicleInfo,
		"is_available":     d.IsAvailable,
		"rating":           d.Rating,
		"total_deliveries": d.TotalDeliveries,
		"earnings":         d.Earnings.Amount,
	}
	if d.Email != "" {
		body["email"] = d.Email
	}
	if d.Location != nil {
		body["current_location"] = d.Location
	}
	return body
}
