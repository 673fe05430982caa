package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/scheduling"
	"github.com/harentsoaR/clinic-api/internal/services"
)

// optionalString tells an absent JSON field apart from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.Directory.ListDoctors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctors": doctors})
}

func (h *Handler) GetDoctor(c *gin.Context) {
	doctor, err := h.Directory.GetDoctor(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctor": doctor})
}

// GetDoctorSlots lists the free slots of a doctor on ?date=.
func (h *Handler) GetDoctorSlots(c *gin.Context) {
	ctx := c.Request.Context()
	doctor, err := h.Directory.GetDoctor(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	date, slots, err := h.Booking.FreeSlots(ctx, doctor, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "slots": slots})
}

type CreateDoctorRequest struct {
	FullName     string                       `json:"fullName" binding:"required"`
	Email        string                       `json:"email" binding:"required,email"`
	Password     string                       `json:"password" binding:"required,min=8"`
	Phone        string                       `json:"phone"`
	Specialty    string                       `json:"specialty"`
	Availability scheduling.AvailabilityInput `json:"availability"`
	Dept         string                       `json:"dept" binding:"omitempty,objectid"`
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	doctor, err := h.Directory.CreateDoctor(c.Request.Context(), services.NewDoctor{
		FullName:     req.FullName,
		Email:        req.Email,
		Password:     req.Password,
		Phone:        req.Phone,
		Specialty:    req.Specialty,
		Availability: req.Availability.Windows,
		Dept:         req.Dept,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"doctor": doctor})
}

type UpdateDoctorRequest struct {
	FullName     *string                       `json:"fullName"`
	Phone        *string                       `json:"phone"`
	Specialty    *string                       `json:"specialty"`
	Availability *scheduling.AvailabilityInput `json:"availability"`
	// Dept: absent leaves the assignment alone, null unassigns.
	Dept optionalString `json:"dept"`
}

// UpdateDoctor patches a doctor; a "dept" field moves the doctor between
// departments.
func (h *Handler) UpdateDoctor(c *gin.Context) {
	var req UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	u := services.DoctorUpdate{
		FullName:  req.FullName,
		Phone:     req.Phone,
		Specialty: req.Specialty,
		Dept:      req.Dept.Value,
		SetDept:   req.Dept.Set,
	}
	if req.Availability != nil {
		u.Availability = req.Availability.Windows
		u.SetAvailability = true
	}
	doctor, err := h.Directory.UpdateDoctor(c.Request.Context(), c.Param("slug"), u)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctor": doctor})
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	if err := h.Directory.DeleteDoctor(c.Request.Context(), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
