package handlers

import (
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

type bookSlotRequest struct {
	DoctorID         string `json:"doctorId"`
	Date             string `json:"date"`
	SlotStart        string `json:"slotStart"`
	TreatmentID      string `json:"treatmentId"`
	PatientID        string `json:"patientId"`
	ConsultationType string `json:"consultationType"`
}

// --- BOOK A SLOT ---
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req bookSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "reason": "validation"})
		return
	}

	apt, err := h.Booking.BookSlot(c.Request.Context(), services.BookingRequest{
		DoctorID:         req.DoctorID,
		Date:             req.Date,
		SlotStart:        req.SlotStart,
		TreatmentID:      req.TreatmentID,
		PatientID:        req.PatientID,
		ConsultationType: req.ConsultationType,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, apt)
}

// --- GET APPOINTMENTS (filter by doctor, patient, day, status) ---
// GET /api/appointments?doctorId=...&date=2025-03-03&status=Registered
func (h *Handler) GetAppointments(c *gin.Context) {
	var filter repository.AppointmentFilter

	if v := c.Query("doctorId"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid doctor ID"})
			return
		}
		filter.DoctorID = id
	}
	if v := c.Query("patientId"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid patient ID"})
			return
		}
		filter.PatientID = id
	}
	if v := c.Query("date"); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, h.Location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, use YYYY-MM-DD"})
			return
		}
		filter.From = day
		filter.To = day.AddDate(0, 0, 1)
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.AppointmentStatus(status)
	}

	appointments, err := h.Appointments.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, storeError(err))
		return
	}
	if appointments == nil {
		appointments = make([]models.Appointment, 0)
	}

	c.JSON(http.StatusOK, appointments)
}

// --- CANCEL APPOINTMENT (Admin/Receptionist Only) ---
func (h *Handler) CancelAppointment(c *gin.Context) {
	appointmentID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointment ID"})
		return
	}

	ctx := c.Request.Context()
	apt, err := h.Appointments.GetByID(ctx, appointmentID)
	if err != nil {
		h.writeError(c, storeError(err))
		return
	}

	switch apt.Status {
	case models.StatusCancelled:
		c.JSON(http.StatusOK, gin.H{"message": "Appointment already cancelled"})
		return
	case models.StatusFinished:
		c.JSON(http.StatusConflict, gin.H{"error": "Finished appointments cannot be cancelled"})
		return
	}

	if err := h.Appointments.UpdateStatus(ctx, appointmentID, models.StatusCancelled); err != nil {
		h.writeError(c, storeError(err))
		return
	}

	userID, _ := c.Get("userID")
	h.Logger.Info("appointment cancelled",
		zap.String("appointmentId", appointmentID.Hex()),
		zap.Any("by", userID),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Appointment cancelled successfully"})
}

func storeError(err error) error {
	if errors.Is(err, scheduling.ErrNotFound) {
		return err
	}
	return errors.Join(scheduling.ErrIO, err)
}
