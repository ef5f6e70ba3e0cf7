package handlers

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-scheduler/internal/middleware"
	"github.com/harentsoaR/clinic-scheduler/internal/models"
)

type RouterOptions struct {
	AllowedOrigins []string
	// TrustedProxies may set the client IP through X-Forwarded-For. Empty
	// means none: the client IP is the peer address.
	TrustedProxies     []string
	RateLimitPerMinute int
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(h *Handler, opts RouterOptions) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(h.Logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
		}))
	}

	// --- Routes ---
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", h.RegisterUser)
		authRoutes.POST("/login", h.Login)
	}

	apiRoutes := r.Group("/api")
	apiRoutes.Use(middleware.AuthMiddleware())
	apiRoutes.Use(middleware.RequireRole(models.StaffRoles...))
	apiRoutes.Use(middleware.RateLimit(opts.RateLimitPerMinute, h.Logger))
	{
		apiRoutes.GET("/doctors/:id/slots", h.GetAvailableSlots)
		apiRoutes.GET("/appointments", h.GetAppointments)

		frontDesk := middleware.RequireRole(models.RoleAdmin, models.RoleReceptionist)
		apiRoutes.POST("/appointments", frontDesk, h.CreateAppointment)
		apiRoutes.PATCH("/appointments/:id/cancel", frontDesk, h.CancelAppointment)

		apiRoutes.PATCH("/users/:id/role", middleware.RequireRole(models.RoleAdmin), h.UpdateUserRole)
	}

	return r, nil
}
