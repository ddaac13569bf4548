package handler

import (
	"net/http"

	"petvet/internal/model"
	"petvet/internal/service"

	"github.com/gin-gonic/gin"
)

// ServiceHandler handles the clinic service catalog
type ServiceHandler struct {
	service service.CatalogService
}

// NewServiceHandler creates a new ServiceHandler
func NewServiceHandler(s service.CatalogService) *ServiceHandler {
	return &ServiceHandler{service: s}
}

func (h *ServiceHandler) ListServices(c *gin.Context) {
	services, err := h.service.ListServices(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list services")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": services, "total": len(services)})
}

func (h *ServiceHandler) SearchServices(c *gin.Context) {
	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}
	services, err := h.service.SearchServices(c.Request.Context(), term)
	if err != nil {
		respondError(c, err, "Failed to search services")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": services, "total": len(services)})
}

func (h *ServiceHandler) GetService(c *gin.Context) {
	svc, err := h.service.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": svc})
}

func (h *ServiceHandler) CreateService(c *gin.Context) {
	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	svc, err := h.service.CreateService(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create service")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Service created successfully", "data": svc})
}

func (h *ServiceHandler) UpdateService(c *gin.Context) {
	var patch model.ServicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	svc, err := h.service.UpdateService(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err, "Failed to update service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Service updated successfully", "data": svc})
}

func (h *ServiceHandler) DeleteService(c *gin.Context) {
	svc, err := h.service.DeleteService(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to delete service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Service deleted successfully", "data": svc})
}

// RegisterServiceRoutes registers catalog routes; writes require authentication
func (h *ServiceHandler) RegisterServiceRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	services := rg.Group("/services")
	{
		services.GET("", h.ListServices)
		services.GET("/search", h.SearchServices)
		services.GET("/:id", h.GetService)
		services.POST("", authMW, h.CreateService)
		services.PUT("/:id", authMW, h.UpdateService)
		services.DELETE("/:id", authMW, h.DeleteService)
	}
}
