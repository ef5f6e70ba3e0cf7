package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
	"github.com/harentsoaR/clinic-scheduler/internal/repository"
	"github.com/harentsoaR/clinic-scheduler/internal/scheduling"
	"github.com/harentsoaR/clinic-scheduler/internal/services"
)

type BookingCoordinator interface {
	ListAvailableSlots(ctx context.Context, q services.SlotQuery) (*services.Availability, error)
	BookSlot(ctx context.Context, req services.BookingRequest) (*models.Appointment, error)
}

type AppointmentRepository interface {
	List(ctx context.Context, f repository.AppointmentFilter) ([]models.Appointment, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.AppointmentStatus) error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role string) (*models.User, error)
}

type Handler struct {
	Booking      BookingCoordinator
	Appointments AppointmentRepository
	Users        UserRepository
	Location     *time.Location
	Logger       *zap.Logger
}

func NewHandler(booking BookingCoordinator, appointments AppointmentRepository, users UserRepository, location *time.Location, logger *zap.Logger) *Handler {
	return &Handler{
		Booking:      booking,
		Appointments: appointments,
		Users:        users,
		Location:     location,
		Logger:       logger.Named("http"),
	}
}

// writeError maps the scheduling error taxonomy to a status and body. A
// conflict asks the user to reselect; an I/O failure asks them to retry.
func (h *Handler) writeError(c *gin.Context, err error) {
	var conflict *scheduling.SlotConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":                    "The selected slot was just booked. Please choose another slot.",
			"reason":                   "slot-conflict",
			"conflictingAppointmentId": conflict.ConflictingID.Hex(),
		})
	case errors.Is(err, scheduling.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": "validation"})
	case errors.Is(err, scheduling.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "reason": "not-found"})
	case errors.Is(err, scheduling.ErrConfiguration):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Scheduling is misconfigured for this doctor or treatment.",
			"reason": "configuration-error",
		})
	case errors.Is(err, scheduling.ErrIO):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "The appointment service is temporarily unavailable. Please retry.",
			"reason":    "unavailable",
			"retryable": true,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request was cancelled"})
	default:
		h.Logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
