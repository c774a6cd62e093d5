package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	storeDriver string
}

func NewHealthController(storeDriver string) *HealthController {
	return &HealthController{storeDriver: storeDriver}
}

// Health handles GET /api/health.
func (hc *HealthController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "Ramesh Computers API is running",
		"store":     hc.storeDriver,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
