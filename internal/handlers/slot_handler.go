package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-scheduler/internal/scheduling"
	"github.com/harentsoaR/clinic-scheduler/internal/services"
)

type availabilityResponse struct {
	DoctorID    string   `json:"doctorId"`
	TreatmentID string   `json:"treatmentId"`
	Date        string   `json:"date"`
	Duration    int      `json:"duration"`
	Slots       []string `json:"slots"`
	Reason      string   `json:"reason,omitempty"`
}

// --- LIST AVAILABLE SLOTS ---
// GET /api/doctors/:id/slots?date=2025-03-03&treatmentId=...
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	q := services.SlotQuery{
		DoctorID:    c.Param("id"),
		Date:        c.Query("date"),
		TreatmentID: c.Query("treatmentId"),
	}

	availability, err := h.Booking.ListAvailableSlots(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}

	slots := make([]string, 0, len(availability.Slots))
	for _, s := range availability.Slots {
		slots = append(slots, s.In(h.Location).Format(scheduling.TimeOfDayLayout))
	}

	c.JSON(http.StatusOK, availabilityResponse{
		DoctorID:    q.DoctorID,
		TreatmentID: q.TreatmentID,
		Date:        q.Date,
		Duration:    int(availability.Duration.Minutes()),
		Slots:       slots,
		Reason:      string(availability.Reason),
	})
}
