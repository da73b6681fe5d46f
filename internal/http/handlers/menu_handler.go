// README: Menu handlers; listing is public, availability toggles are staff-only.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bistro/internal/http/middleware"
	"bistro/internal/modules/menu"
	"bistro/internal/types"
)

type MenuHandler struct {
	menu *menu.Store
}

func NewMenuHandler(store *menu.Store) *MenuHandler {
	return &MenuHandler{menu: store}
}

func (h *MenuHandler) List(c *gin.Context) {
	items, err := h.menu.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, len(items))
	for i, it := range items {
		out[i] = gin.H{
			"id":          it.ID,
			"name":        it.Name,
			"description": it.Description,
			"price":       it.Price.Amount,
			"available":   it.Available,
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"items": out})
}

type availabilityReq struct {
	Available *bool `json:"available" binding:"required"`
}

func (h *MenuHandler) SetAvailability(c *gin.Context) {
	if middleware.CallerRole(c) != "staff" {
		writeError(c, http.StatusForbidden, "forbidden: staff role required")
		return
	}
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing item id")
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.menu.SetAvailability(c.Request.Context(), types.ID(id), *req.Available); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": id, "available": *req.Available})
}
