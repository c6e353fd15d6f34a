package im

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"chatapi/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Controller exposes the IM dispatch surface. The wire format mirrors what
// chat clients already consume: {funName, params} in, {success, result} out.
type Controller struct {
	registry *Registry
	logger   *logger.Logger
}

func NewController(registry *Registry, log *logger.Logger) *Controller {
	return &Controller{
		registry: registry,
		logger:   log,
	}
}

type dispatchRequest struct {
	FunName string          `json:"funName"`
	Params  json.RawMessage `json:"params"`
}

// ListMethods returns the closed set of dispatchable operations.
func (c *Controller) ListMethods(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"message":          "REST API",
		"availableMethods": c.registry.Names(),
	})
}

// Dispatch runs a named IM operation with the caller's params.
func (c *Controller) Dispatch(ctx *gin.Context) {
	var req dispatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
		})
		return
	}

	start := time.Now()
	result, err := c.registry.Dispatch(ctx.Request.Context(), req.FunName, req.Params)
	c.logger.LogIMCall(ctx.Request.Context(), req.FunName, time.Since(start), err)
	if err != nil {
		var unknown *UnknownOperationError
		if errors.As(err, &unknown) {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"success":          false,
				"error":            "Invalid function name",
				"availableMethods": unknown.Available,
			})
			return
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			ctx.JSON(http.StatusBadGateway, gin.H{
				"success": false,
				"error":   apiErr.Error(),
			})
			return
		}

		ctx.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}
