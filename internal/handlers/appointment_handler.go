package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/services"
)

type CreateAppointmentRequest struct {
	DoctorID        string `json:"doctorId" binding:"required,objectid"`
	Date            string `json:"date" binding:"required"`
	TimeSlot        string `json:"timeSlot" binding:"required"`
	DurationMinutes int    `json:"durationMinutes" binding:"omitempty,min=1,max=480"`
	Reason          string `json:"reason"`
}

// CreateAppointment books a slot for the calling patient.
func (h *Handler) CreateAppointment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	apt, err := h.Booking.AttemptBook(c.Request.Context(), p, services.BookingRequest{
		DoctorID:        req.DoctorID,
		Date:            req.Date,
		TimeSlot:        req.TimeSlot,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"appointment": apt})
}

// GetBookedSlots lists taken slots, e.g. /api/appointments/booked?doctorId=...&date=2025-06-02
func (h *Handler) GetBookedSlots(c *gin.Context) {
	booked, err := h.Booking.BookedSlots(c.Request.Context(), c.Query("doctorId"), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booked": booked})
}

// GetAppointments lists the caller's appointments, filtered by the optional
// status, date and doctorId query parameters.
func (h *Handler) GetAppointments(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := h.Booking.ListAppointments(c.Request.Context(), p, services.AppointmentQuery{
		Status:   c.Query("status"),
		Date:     c.Query("date"),
		DoctorID: c.Query("doctorId"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": list})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	apt, err := h.Booking.GetAppointment(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": apt})
}

type UpdateAppointmentRequest struct {
	Action       string                      `json:"action" binding:"omitempty,oneof=confirm complete cancel"`
	Prescription *services.PrescriptionInput `json:"prescription"`
}

// UpdateAppointment moves an appointment through its lifecycle and/or
// attaches a prescription (assigned doctor or admin).
func (h *Handler) UpdateAppointment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	apt, err := h.Booking.UpdateAppointment(c.Request.Context(), p, c.Param("id"), services.AppointmentUpdate{
		Action:       req.Action,
		Prescription: req.Prescription,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": apt})
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.Booking.DeleteAppointment(c.Request.Context(), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
