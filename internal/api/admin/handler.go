package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askbook/internal/api/response"
	"github.com/liliang-cn/askbook/internal/service"
)

// Handler handles admin API requests
type Handler struct {
	adminService *service.AdminService
}

// NewHandler creates a new admin handler
func NewHandler(adminService *service.AdminService) *Handler {
	return &Handler{adminService: adminService}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/ingest", h.Ingest)
	r.POST("/reset", h.Reset)
	r.GET("/stats", h.GetStats)
}

// Ingest runs ingestion over the configured docs directory
func (h *Handler) Ingest(c *gin.Context) {
	report, err := h.adminService.Ingest(c.Request.Context(), "")
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Reset empties the vector collection
func (h *Handler) Reset(c *gin.Context) {
	if err := h.adminService.Reset(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// GetStats returns index and session statistics
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
