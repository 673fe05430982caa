package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

// Handler holds the services the HTTP endpoints delegate to.
type Handler struct {
	Accounts  *services.AccountService
	Booking   *services.BookingService
	Directory *services.DirectoryService
}

func NewHandler(accounts *services.AccountService, booking *services.BookingService, directory *services.DirectoryService) *Handler {
	return &Handler{
		Accounts:  accounts,
		Booking:   booking,
		Directory: directory,
	}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r gin.IRouter, tokens *utils.TokenIssuer) {
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", h.RegisterUser)
		authRoutes.POST("/login", h.Login)
	}

	apiRoutes := r.Group("/api")
	apiRoutes.Use(middleware.AuthMiddleware(tokens)) // Protect all /api routes
	{
		apiRoutes.GET("/me", h.GetCurrentUser)
		apiRoutes.PUT("/me", h.UpdateCurrentUser)

		apiRoutes.GET("/appointments/booked", h.GetBookedSlots)
		apiRoutes.GET("/appointments", h.GetAppointments)
		apiRoutes.POST("/appointments", h.CreateAppointment)
		apiRoutes.GET("/appointments/:id", h.GetAppointment)
		apiRoutes.PATCH("/appointments/:id", h.UpdateAppointment)
		apiRoutes.DELETE("/appointments/:id", h.DeleteAppointment)

		apiRoutes.GET("/doctors", h.ListDoctors)
		apiRoutes.GET("/doctors/:slug", h.GetDoctor)
		apiRoutes.GET("/doctors/:slug/slots", h.GetDoctorSlots)
		apiRoutes.GET("/departments", h.ListDepartments)
		apiRoutes.GET("/departments/:slug", h.GetDepartment)
	}

	adminRoutes := apiRoutes.Group("")
	adminRoutes.Use(middleware.RequireRole(models.RoleAdmin))
	{
		adminRoutes.POST("/doctors", h.CreateDoctor)
		adminRoutes.PATCH("/doctors/:slug", h.UpdateDoctor)
		adminRoutes.DELETE("/doctors/:slug", h.DeleteDoctor)
		adminRoutes.POST("/departments", h.CreateDepartment)
		adminRoutes.PATCH("/departments/:slug", h.UpdateDepartment)
		adminRoutes.DELETE("/departments/:slug", h.DeleteDepartment)
	}
}

// principal reads the caller or aborts with 401.
func principal(c *gin.Context) (services.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return p, ok
}
