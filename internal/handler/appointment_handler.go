package handler

import (
	"net/http"

	"petvet/internal/metrics"
	"petvet/internal/model"
	"petvet/internal/service"

	"github.com/gin-gonic/gin"
)

// AppointmentHandler handles appointment booking
type AppointmentHandler struct {
	service service.AppointmentService
}

// NewAppointmentHandler creates a new AppointmentHandler
func NewAppointmentHandler(s service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: s}
}

func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	appointment, err := h.service.CreateAppointment(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to book appointment")
		return
	}
	metrics.RecordAppointmentCreated()

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Appointment booked successfully",
		"appointment": appointment,
	})
}

func (h *AppointmentHandler) GetMyAppointments(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	appointments, err := h.service.ListUserAppointments(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve appointments")
		return
	}
	c.JSON(http.StatusOK, appointments)
}

// RegisterAppointmentRoutes registers appointment routes, all authenticated
func (h *AppointmentHandler) RegisterAppointmentRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	appointments := rg.Group("/appointments")
	appointments.Use(authMW)
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/me", h.GetMyAppointments)
	}
}
