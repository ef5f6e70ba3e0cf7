package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
	"github.com/harentsoaR/clinic-scheduler/internal/scheduling"
)

const dateLayout = "2006-01-02"

type AppointmentStore interface {
	GetAppointmentsInRange(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Appointment, error)
	CreateAppointment(ctx context.Context, apt *models.Appointment) error
}

type DoctorStore interface {
	GetDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error)
}

type TreatmentStore interface {
	GetTreatment(ctx context.Context, id primitive.ObjectID) (*models.Treatment, error)
}

// Notifier is told about committed bookings. It must not block.
type Notifier interface {
	AppointmentBooked(apt *models.Appointment)
}

type UnavailableReason string

const (
	ReasonNoWorkingHours UnavailableReason = "no-working-hours"
	ReasonNoValidSlots   UnavailableReason = "no-valid-slots"
)

// Availability is a point-in-time view of a doctor's free start times.
// Nothing is reserved; a slot listed here may be taken before it is booked.
type Availability struct {
	Date     time.Time
	Duration time.Duration
	Slots    []time.Time
	Reason   UnavailableReason
}

type SlotQuery struct {
	DoctorID    string `validate:"required"`
	Date        string `validate:"required,datetime=2006-01-02"`
	TreatmentID string `validate:"required"`
}

type BookingRequest struct {
	DoctorID         string `validate:"required"`
	Date             string `validate:"required,datetime=2006-01-02"`
	SlotStart        string `validate:"required,datetime=15:04"`
	TreatmentID      string `validate:"required"`
	PatientID        string `validate:"required"`
	ConsultationType string `validate:"required,oneof=direct online"`
}

// BookingService computes a doctor's free slots and books one of them after
// re-checking it against a fresh read of the doctor's appointments.
//
// The re-check narrows but does not close the race between two sessions
// booking the same slot: the read and the insert are separate calls to a
// store with no overlap constraint.
type BookingService struct {
	appointments AppointmentStore
	doctors      DoctorStore
	treatments   TreatmentStore
	notifier     Notifier
	location     *time.Location
	now          func() time.Time
	validate     *validator.Validate
	logger       *zap.Logger
}

type Option func(*BookingService)

// WithClock replaces time.Now, which decides which slots are in the past.
func WithClock(now func() time.Time) Option {
	return func(s *BookingService) { s.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(s *BookingService) { s.notifier = n }
}

func NewBookingService(
	appointments AppointmentStore,
	doctors DoctorStore,
	treatments TreatmentStore,
	location *time.Location,
	logger *zap.Logger,
	opts ...Option,
) *BookingService {
	s := &BookingService{
		appointments: appointments,
		doctors:      doctors,
		treatments:   treatments,
		location:     location,
		now:          time.Now,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger.Named("booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAvailableSlots returns the doctor's free start times for the treatment
// on a date, computed against the appointments stored at call time.
func (s *BookingService) ListAvailableSlots(ctx context.Context, q SlotQuery) (*Availability, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("%w: %w", scheduling.ErrValidation, err)
	}
	doctorID, treatmentID, date, err := s.parseSelection(q.DoctorID, q.TreatmentID, q.Date)
	if err != nil {
		return nil, err
	}

	doctor, treatment, err := s.loadReference(ctx, doctorID, treatmentID)
	if err != nil {
		return nil, err
	}

	result := &Availability{Date: date, Duration: scheduling.Minutes(treatment.Duration), Slots: []time.Time{}}

	window, ok, candidates, err := s.candidates(doctor, treatment, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		result.Reason = ReasonNoWorkingHours
		return result, nil
	}

	booked, err := s.fetchDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	free := scheduling.FilterAvailable(scheduling.NotBefore(candidates, s.now()), result.Duration, booked)
	result.Slots = append(result.Slots, slices.Collect(free)...)
	if len(result.Slots) == 0 {
		result.Reason = ReasonNoValidSlots
	}

	s.logger.Debug("slots listed",
		zap.String("doctorId", q.DoctorID),
		zap.String("date", q.Date),
		zap.Time("windowStart", window.Start),
		zap.Time("windowEnd", window.End),
		zap.Int("booked", len(booked)),
		zap.Int("free", len(result.Slots)),
	)
	return result, nil
}

// BookSlot re-reads the doctor's appointments for the date, and inserts a
// Registered appointment only if [start, start+duration) overlaps none of
// the non-cancelled ones. A *scheduling.SlotConflictError means the caller
// must list slots again and let the user pick another one.
func (s *BookingService) BookSlot(ctx context.Context, req BookingRequest) (*models.Appointment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", scheduling.ErrValidation, err)
	}
	doctorID, treatmentID, date, err := s.parseSelection(req.DoctorID, req.TreatmentID, req.Date)
	if err != nil {
		return nil, err
	}
	patientID, err := primitive.ObjectIDFromHex(req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid patient id %q", scheduling.ErrValidation, req.PatientID)
	}
	start, err := scheduling.OnDate(date, req.SlotStart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scheduling.ErrValidation, err)
	}
	if start.Before(s.now()) {
		return nil, fmt.Errorf("%w: slot %s %s is in the past", scheduling.ErrValidation, req.Date, req.SlotStart)
	}

	doctor, treatment, err := s.loadReference(ctx, doctorID, treatmentID)
	if err != nil {
		return nil, err
	}

	_, ok, candidates, err := s.candidates(doctor, treatment, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: doctor has no working hours on %s", scheduling.ErrValidation, req.Date)
	}
	if !contains(candidates, start) {
		return nil, fmt.Errorf("%w: %s is not a bookable slot start on %s", scheduling.ErrValidation, req.SlotStart, req.Date)
	}

	end := start.Add(scheduling.Minutes(treatment.Duration))

	// Never reuse a listing here; another session may have booked since.
	booked, err := s.fetchDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if taken := scheduling.FindConflict(start, end, booked); taken != nil {
		s.logger.Info("slot conflict",
			zap.String("doctorId", req.DoctorID),
			zap.Time("start", start),
			zap.String("conflictingId", taken.ID.Hex()),
		)
		return nil, &scheduling.SlotConflictError{Start: start, End: end, ConflictingID: taken.ID}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	apt := &models.Appointment{
		ID:               primitive.NewObjectID(),
		DoctorID:         doctorID,
		PatientID:        patientID,
		TreatmentID:      treatmentID,
		StartTime:        start,
		EndTime:          end,
		Status:           models.StatusRegistered,
		ConsultationType: models.ConsultationType(req.ConsultationType),
		CreatedAt:        s.now(),
	}
	if err := s.appointments.CreateAppointment(ctx, apt); err != nil {
		return nil, s.ioError(ctx, "create appointment", err)
	}

	s.logger.Info("appointment booked",
		zap.String("appointmentId", apt.ID.Hex()),
		zap.String("doctorId", req.DoctorID),
		zap.String("patientId", req.PatientID),
		zap.Time("start", start),
		zap.Time("end", end),
	)
	if s.notifier != nil {
		s.notifier.AppointmentBooked(apt)
	}
	return apt, nil
}

func (s *BookingService) parseSelection(doctorHex, treatmentHex, day string) (doctorID, treatmentID primitive.ObjectID, date time.Time, err error) {
	if doctorID, err = primitive.ObjectIDFromHex(doctorHex); err != nil {
		return doctorID, treatmentID, date, fmt.Errorf("%w: invalid doctor id %q", scheduling.ErrValidation, doctorHex)
	}
	if treatmentID, err = primitive.ObjectIDFromHex(treatmentHex); err != nil {
		return doctorID, treatmentID, date, fmt.Errorf("%w: invalid treatment id %q", scheduling.ErrValidation, treatmentHex)
	}
	if date, err = time.ParseInLocation(dateLayout, day, s.location); err != nil {
		return doctorID, treatmentID, date, fmt.Errorf("%w: invalid date %q", scheduling.ErrValidation, day)
	}
	return doctorID, treatmentID, date, nil
}

func (s *BookingService) loadReference(ctx context.Context, doctorID, treatmentID primitive.ObjectID) (*models.Doctor, *models.Treatment, error) {
	doctor, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, nil, s.lookupError(ctx, "get doctor", err)
	}
	treatment, err := s.treatments.GetTreatment(ctx, treatmentID)
	if err != nil {
		return nil, nil, s.lookupError(ctx, "get treatment", err)
	}
	if !doctor.OffersTreatment(treatment.ID) {
		return nil, nil, fmt.Errorf("%w: treatment %s is not offered by doctor %s",
			scheduling.ErrValidation, treatment.ID.Hex(), doctor.ID.Hex())
	}
	return doctor, treatment, nil
}

// candidates runs the pure pipeline up to slot generation. ok is false when
// the doctor does not work on date.
func (s *BookingService) candidates(doctor *models.Doctor, treatment *models.Treatment, date time.Time) (scheduling.Window, bool, iter.Seq[time.Time], error) {
	window, ok, err := scheduling.ResolveWorkingHours(doctor, date)
	if err != nil {
		return window, false, nil, s.configError(doctor, treatment, err)
	}

	// Checked even on closed days so bad setup surfaces early.
	seq, err := scheduling.GenerateSlots(window, scheduling.Minutes(doctor.SlotInterval), scheduling.Minutes(treatment.Duration))
	if err != nil {
		return window, false, nil, s.configError(doctor, treatment, err)
	}
	return window, ok, seq, nil
}

func (s *BookingService) fetchDay(ctx context.Context, doctorID primitive.ObjectID, date time.Time) ([]models.Appointment, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.location)
	booked, err := s.appointments.GetAppointmentsInRange(ctx, doctorID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, s.ioError(ctx, "get appointments", err)
	}
	return booked, nil
}

func (s *BookingService) configError(doctor *models.Doctor, treatment *models.Treatment, err error) error {
	s.logger.Error("invalid scheduling configuration",
		zap.String("doctorId", doctor.ID.Hex()),
		zap.String("treatmentId", treatment.ID.Hex()),
		zap.Int("slotInterval", doctor.SlotInterval),
		zap.Int("duration", treatment.Duration),
		zap.Error(err),
	)
	return err
}

func (s *BookingService) lookupError(ctx context.Context, op string, err error) error {
	if errors.Is(err, scheduling.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.ioError(ctx, op, err)
}

// ioError wraps a store failure as ErrIO, except when the caller's context
// ended, in which case the context error is returned as is.
func (s *BookingService) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.Warn("store call failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", scheduling.ErrIO, op, err)
}

func contains(seq iter.Seq[time.Time], t time.Time) bool {
	for c := range seq {
		if c.Equal(t) {
			return true
		}
		if c.After(t) {
			return false
		}
	}
	return false
}
