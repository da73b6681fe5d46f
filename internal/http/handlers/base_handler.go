// README: Base handler utilities (JSON helpers, domain error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bistro/internal/modules/cart"
	"bistro/internal/modules/driver"
	"bistro/internal/modules/menu"
	"bistro/internal/modules/order"
)

func writeJSON(c *gin.Context, status int, v gin.H) {
	v["success"] = status < http.StatusBadRequest
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// writeDomainError maps module sentinel errors onto the HTTP status
// taxonomy. External-dependency failures surface as 500 without detail.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, menu.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrBadIdentity),
		errors.Is(err, menu.ErrUnavailable),
		errors.Is(err, order.ErrBadRequest),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, driver.ErrWeakPassword),
		errors.Is(err, driver.ErrInvalidLocation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, driver.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, order.ErrCustomerMismatch):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrInvalidDriver),
		errors.Is(err, order.ErrDriverRequired),
		errors.Is(err, order.ErrPaymentRequired),
		errors.Is(err, order.ErrNotDelivered),
		errors.Is(err, order.ErrDriverMismatch),
		errors.Is(err, driver.ErrConflict),
		errors.Is(err, driver.ErrActiveDeliveries):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
