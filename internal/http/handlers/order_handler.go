// README: Order handlers; checkout, payment, lifecycle, and rating.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bistro/internal/http/middleware"
	"bistro/internal/modules/order"
	"bistro/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type checkoutReq struct {
	OrderType       string `json:"order_type" binding:"required"`
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerPhone   string `json:"customer_phone" binding:"required"`
	CustomerEmail   string `json:"customer_email"`
	DeliveryAddress string `json:"delivery_address"`
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		writeError(c, http.StatusBadRequest, "missing session or customer identity")
		return
	}
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.Checkout(c.Request.Context(), order.CheckoutCommand{
		Identity:        id,
		Type:            order.Type(req.OrderType),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"order": orderBody(o)})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order": orderBody(o)})
}

type paymentReq struct {
	Method string `json:"method" binding:"required"`
}

func (h *OrderHandler) Pay(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req paymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.order.ProcessPayment(c.Request.Context(), order.PaymentCommand{
		OrderID: types.ID(id),
		Method:  req.Method,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"payment": gin.H{
		"order_id":       p.OrderID,
		"method":         p.Method,
		"amount":         p.Amount.Amount,
		"transaction_id": p.TransactionID,
	}})
}

type assignDriverReq struct {
	DriverID string `json:"driver_id" binding:"required"`
}

func (h *OrderHandler) AssignDriver(c *gin.Context) {
	if middleware.CallerRole(c) != "staff" {
		writeError(c, http.StatusForbidden, "forbidden: staff role required")
		return
	}
	id := c.Param("id")
	var req assignDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.AssignDriver(c.Request.Context(), order.AssignDriverCommand{
		OrderID:  types.ID(id),
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "driver_id": req.DriverID})
}

type advanceReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *OrderHandler) Advance(c *gin.Context) {
	role := middleware.CallerRole(c)
	if role != "staff" && role != "driver" {
		writeError(c, http.StatusForbidden, "forbidden: staff or driver role required")
		return
	}
	id := c.Param("id")
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	actorID := types.ID(middleware.CallerUID(c))
	err := h.order.AdvanceStatus(c.Request.Context(), order.AdvanceCommand{
		OrderID:   types.ID(id),
		To:        order.Status(req.Status),
		ActorType: role,
		ActorID:   &actorID,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": req.Status})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:   types.ID(id),
		ActorType: "customer",
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order": orderBody(o)})
}

type ratingReq struct {
	Rating        int    `json:"rating" binding:"required"`
	Comment       string `json:"comment"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`
}

func (h *OrderHandler) Rate(c *gin.Context) {
	id := c.Param("id")
	var req ratingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	avg, err := h.order.SubmitDriverRating(c.Request.Context(), order.RatingCommand{
		OrderID:       types.ID(id),
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "driver_rating": avg})
}

func orderBody(o *order.Order) gin.H {
	items := make([]gin.H, len(o.Items))
	for i, it := range o.Items {
		items[i] = gin.H{
			"id":           it.ID,
			"menu_item_id": it.MenuItemID,
			"name":         it.Name,
			"description":  it.Description,
			"unit_price":   it.UnitPrice.Amount,
			"quantity":     it.Quantity,
			"total_price":  it.TotalPrice.Amount,
		}
	}
	body := gin.H{
		"id":             o.ID,
		"order_number":   o.OrderNumber,
		"order_type":     o.Type,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"customer_name":  o.CustomerName,
		"subtotal":       o.Subtotal.Amount,
		"tax":            o.Tax.Amount,
		"delivery_fee":   o.DeliveryFee.Amount,
		"total":          o.Total.Amount,
		"currency":       o.Total.Currency,
		"items":          items,
		"created_at":     o.CreatedAt,
	}
	if o.DriverID != nil {
		body["driver_id"] = *o.DriverID
	}
	if o.DeliveryAddress != nil {
		body["delivery_address"] = *o.DeliveryAddress
	}
	return body
}
