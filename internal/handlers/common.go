// internal/handlers/common.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/corretorpro/crm-backend/internal/services"
	"github.com/corretorpro/crm-backend/internal/utils"
)

// handleServiceError maps the service error taxonomy onto HTTP statuses.
// The resource name selects the translated not-found message.
func handleServiceError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, resource)
	case errors.Is(err, services.ErrInvalidTransition):
		utils.UnprocessableResponse(c, err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrValidation):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, services.ErrIntegration):
		utils.BadGatewayResponse(c, err.Error())
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}
