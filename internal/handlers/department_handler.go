package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/services"
)

func (h *Handler) ListDepartments(c *gin.Context) {
	departments, err := h.Directory.ListDepartments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

func (h *Handler) GetDepartment(c *gin.Context) {
	department, err := h.Directory.GetDepartment(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": department})
}

type CreateDepartmentRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Photo       string   `json:"photo"`
	Doctors     []string `json:"doctors" binding:"omitempty,dive,objectid"`
}

func (h *Handler) CreateDepartment(c *gin.Context) {
	var req CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	department, err := h.Directory.CreateDepartment(c.Request.Context(), services.NewDepartment{
		Name:        req.Name,
		Description: req.Description,
		Photo:       req.Photo,
		Doctors:     req.Doctors,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"department": department})
}

type UpdateDepartmentRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Photo       *string `json:"photo"`
	// Doctors, when present, replaces the department's doctor set.
	Doctors *[]string `json:"doctors"`
}

// UpdateDepartment patches a department; a "doctors" field re-syncs its
// doctor set.
func (h *Handler) UpdateDepartment(c *gin.Context) {
	var req UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	department, err := h.Directory.UpdateDepartment(c.Request.Context(), c.Param("slug"), services.DepartmentUpdate{
		Name:        req.Name,
		Description: req.Description,
		Photo:       req.Photo,
		Doctors:     req.Doctors,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": department})
}

func (h *Handler) DeleteDepartment(c *gin.Context) {
	if err := h.Directory.DeleteDepartment(c.Request.Context(), c.Param("slug")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
