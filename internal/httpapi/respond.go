package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/nazeru/storefront-go/internal/domain"
)

func statusFor(code string) int {
	switch code {
	case domain.EINVALID, domain.ECONFLICT, domain.EPAYMENT:
		// Stock conflicts report 400 to match the storefront contract.
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeError translates a workflow error into the wire contract. Raw
// driver/gateway detail is logged, never echoed, except in development.
func (s *Server) writeError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := statusFor(code)

	body := gin.H{"error": domain.ErrorMessage(err)}

	var stock *domain.InsufficientStockError
	if errors.As(err, &stock) {
		body["productId"] = stock.ProductID
		body["requested"] = stock.Requested
		body["available"] = stock.Available
	}

	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		if s.development {
			body["detail"] = err.Error()
		}
	}
	c.JSON(status, body)
}
