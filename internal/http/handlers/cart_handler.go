// README: Cart handlers; identity is the customer UID or a guest session header.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bistro/internal/http/middleware"
	"bistro/internal/modules/cart"
	"bistro/internal/types"
)

const sessionHeader = "X-Session-ID"

type CartHandler struct {
	cart   *cart.Service
	orders cart.OrderReader
}

func NewCartHandler(cartSvc *cart.Service, orders cart.OrderReader) *CartHandler {
	return &CartHandler{cart: cartSvc, orders: orders}
}

// cartIdentity resolves the cart key: the authenticated customer when there
// is one, otherwise the guest session header.
func cartIdentity(c *gin.Context) (cart.Identity, bool) {
	if uid := middleware.CallerUID(c); uid != "" {
		return cart.Identity{CustomerID: types.ID(uid)}, true
	}
	if sid := c.GetHeader(sessionHeader); sid != "" {
		return cart.Identity{SessionID: types.ID(sid)}, true
	}
	return cart.Identity{}, false
}

func (h *CartHandler) Get(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		writeError(c, http.StatusBadRequest, "missing session or customer identity")
		return
	}
	view, err := h.cart.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cartBody(view))
}

type addItemReq struct {
	MenuItemID          string `json:"menu_item_id" binding:"required"`
	Quantity            int    `json:"quantity" binding:"required"`
	SpecialInstructions string `json:"special_instructions"`
	Customizations      string `json:"customizations"`
}

func (h *CartHandler) AddItem(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		writeError(c, http.StatusBadRequest, "missing session or customer identity")
		return
	}
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	view, err := h.cart.AddItem(c.Request.Context(), cart.AddItemCommand{
		Identity:            id,
		MenuItemID:          types.ID(req.MenuItemID),
		Quantity:            req.Quantity,
		SpecialInstructions: req.SpecialInstructions,
		Customizations:      req.Customizations,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cartBody(view))
}

type updateLineReq struct {
	Quantity            int     `json:"quantity" binding:"required"`
	SpecialInstructions *string `json:"special_instructions"`
	Customizations      *string `json:"customizations"`
}

func (h *CartHandler) UpdateLine(c *gin.Context) {
	lineID := c.Param("lineId")
	if lineID == "" {
		writeError(c, http.StatusBadRequest, "missing line id")
		return
	}
	var req updateLineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	view, err := h.cart.UpdateLine(c.Request.Context(), cart.UpdateLineCommand{
		LineID:              types.ID(lineID),
		Quantity:            req.Quantity,
		SpecialInstructions: req.SpecialInstructions,
		Customizations:      req.Customizations,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cartBody(view))
}

func (h *CartHandler) RemoveLine(c *gin.Context) {
	lineID := c.Param("lineId")
	if lineID == "" {
		writeError(c, http.StatusBadRequest, "missing line id")
		return
	}
	view, err := h.cart.RemoveLine(c.Request.Context(), types.ID(lineID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cartBody(view))
}

func (h *CartHandler) Clear(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		writeError(c, http.StatusBadRequest, "missing session or customer identity")
		return
	}
	if err := h.cart.Clear(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"cleared": true})
}

func (h *CartHandler) Reorder(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		writeError(c, http.StatusBadRequest, "missing session or customer identity")
		return
	}
	orderID := c.Param("orderId")
	if orderID == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	view, err := h.cart.Reorder(c.Request.Context(), h.orders, types.ID(orderID), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cartBody(view))
}

func cartBody(v *cart.View) gin.H {
	items := make([]gin.H, len(v.Items))
	for i, l := range v.Items {
		items[i] = gin.H{
			"id":                   l.ID,
			"menu_item_id":         l.MenuItemID,
			"quantity":             l.Quantity,
			"unit_price":           l.UnitPrice.Amount,
			"total_price":          l.TotalPrice.Amount,
			"special_instructions": l.SpecialInstructions,
			"customizations":       l.Customizations,
		}
	}
	return gin.H{
		"cart": gin.H{
			"id":         v.ID,
			"items":      items,
			"total":      v.Total.Amount,
			"item_count": v.ItemCount,
		},
	}
}
