package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
)

const textbeltURL = "https://textbelt.com/text"

type PatientStore interface {
	GetPatient(ctx context.Context, id primitive.ObjectID) (*models.Patient, error)
}

// NotificationService sends booking confirmations by SMS through Textbelt.
// Delivery is best effort and never affects the booking.
type NotificationService struct {
	patients PatientStore
	apiKey   string
	endpoint string
	client   *http.Client
	location *time.Location
	logger   *zap.Logger
}

func NewNotificationService(patients PatientStore, apiKey string, location *time.Location, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		patients: patients,
		apiKey:   apiKey,
		endpoint: textbeltURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		location: location,
		logger:   logger.Named("notifications"),
	}
}

// AppointmentBooked sends the confirmation in a goroutine so it doesn't
// block the API response.
func (s *NotificationService) AppointmentBooked(apt *models.Appointment) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.sendConfirmation(ctx, apt); err != nil {
			s.logger.Warn("confirmation SMS not sent",
				zap.String("appointmentId", apt.ID.Hex()),
				zap.Error(err),
			)
		}
	}()
}

func (s *NotificationService) sendConfirmation(ctx context.Context, apt *models.Appointment) error {
	patient, err := s.patients.GetPatient(ctx, apt.PatientID)
	if err != nil {
		return fmt.Errorf("load patient: %w", err)
	}
	if patient.Phone == "" {
		s.logger.Info("SMS not sent: patient has no phone number", zap.String("patientId", patient.ID.Hex()))
		return nil
	}

	body := fmt.Sprintf("Appointment confirmed for %s on %s (%s).",
		patient.FullName,
		apt.StartTime.In(s.location).Format("Jan 2 at 15:04"),
		apt.ConsultationType,
	)
	return s.sendSMS(ctx, patient.Phone, body)
}

type textbeltResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *NotificationService) sendSMS(ctx context.Context, phone, message string) error {
	postBody, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
		"key":     s.apiKey,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(postBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("textbelt request: %w", err)
	}
	defer resp.Body.Close()

	var result textbeltResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("textbelt response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("textbelt rejected message: %s", result.Error)
	}

	s.logger.Debug("confirmation SMS sent", zap.String("phone", phone))
	return nil
}
