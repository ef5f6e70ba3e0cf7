package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
	"github.com/harentsoaR/clinic-scheduler/internal/scheduling"
)

// -- Fake stores --

type fakeStore struct {
	mu           sync.Mutex
	appointments []models.Appointment
	doctors      map[primitive.ObjectID]*models.Doctor
	treatments   map[primitive.ObjectID]*models.Treatment

	lookups    int
	rangeCalls int
	rangeErr   error
	createErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		doctors:    make(map[primitive.ObjectID]*models.Doctor),
		treatments: make(map[primitive.ObjectID]*models.Treatment),
	}
}

func (f *fakeStore) GetDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	d, ok := f.doctors[id]
	if !ok {
		return nil, scheduling.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) GetTreatment(ctx context.Context, id primitive.ObjectID) (*models.Treatment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	t, ok := f.treatments[id]
	if !ok {
		return nil, scheduling.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) GetAppointmentsInRange(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rangeCalls++
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []models.Appointment
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAppointment(ctx context.Context, apt *models.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.appointments = append(f.appointments, *apt)
	return nil
}

func (f *fakeStore) add(doctorID primitive.ObjectID, start time.Time, minutes int, status models.AppointmentStatus) models.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := models.Appointment{
		ID:        primitive.NewObjectID(),
		DoctorID:  doctorID,
		PatientID: primitive.NewObjectID(),
		StartTime: start,
		EndTime:   start.Add(scheduling.Minutes(minutes)),
		Status:    status,
	}
	f.appointments = append(f.appointments, a)
	return a
}

type recordingNotifier struct {
	booked []*models.Appointment
}

func (r *recordingNotifier) AppointmentBooked(apt *models.Appointment) {
	r.booked = append(r.booked, apt)
}

// -- Fixture: doctor works Monday 09:00-11:00, 30 minute grid, 30 minute treatment --

const monday = "2025-03-03"

type fixture struct {
	store     *fakeStore
	svc       *BookingService
	doctor    *models.Doctor
	treatment *models.Treatment
	notifier  *recordingNotifier
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newFakeStore(),
		notifier: &recordingNotifier{},
		now:      time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC),
	}
	f.treatment = &models.Treatment{ID: primitive.NewObjectID(), Name: "Consultation", Duration: 30}
	f.doctor = &models.Doctor{
		ID:           primitive.NewObjectID(),
		FullName:     "Dr. Andria",
		WorkingDays:  []string{"Monday"},
		Schedule:     models.WeeklySchedule{"Monday": {Start: "09:00", End: "11:00"}},
		SlotInterval: 30,
		TreatmentIDs: []primitive.ObjectID{f.treatment.ID},
		Active:       true,
	}
	f.store.doctors[f.doctor.ID] = f.doctor
	f.store.treatments[f.treatment.ID] = f.treatment
	f.svc = NewBookingService(f.store, f.store, f.store, time.UTC, zap.NewNop(),
		WithClock(func() time.Time { return f.now }),
		WithNotifier(f.notifier),
	)
	return f
}

func (f *fixture) at(hhmm string) time.Time {
	day, _ := time.ParseInLocation(dateLayout, monday, time.UTC)
	t, err := scheduling.OnDate(day, hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *fixture) query() SlotQuery {
	return SlotQuery{DoctorID: f.doctor.ID.Hex(), Date: monday, TreatmentID: f.treatment.ID.Hex()}
}

func (f *fixture) request(slot string) BookingRequest {
	return BookingRequest{
		DoctorID:         f.doctor.ID.Hex(),
		Date:             monday,
		SlotStart:        slot,
		TreatmentID:      f.treatment.ID.Hex(),
		PatientID:        primitive.NewObjectID().Hex(),
		ConsultationType: "direct",
	}
}

func clock(ts []time.Time) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Format(scheduling.TimeOfDayLayout))
	}
	return out
}

// -- ListAvailableSlots --

func TestListAvailableSlotsScenarios(t *testing.T) {
	t.Run("A: empty day", func(t *testing.T) {
		f := newFixture(t)
		got, err := f.svc.ListAvailableSlots(context.Background(), f.query())
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, clock(got.Slots))
		assert.Empty(t, got.Reason)
	})

	t.Run("B: registered appointment at 10:00", func(t *testing.T) {
		f := newFixture(t)
		f.store.add(f.doctor.ID, f.at("10:00"), 30, models.StatusRegistered)
		got, err := f.svc.ListAvailableSlots(context.Background(), f.query())
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:30"}, clock(got.Slots))
	})

	t.Run("C: cancelled appointment at 10:00", func(t *testing.T) {
		f := newFixture(t)
		f.store.add(f.doctor.ID, f.at("10:00"), 30, models.StatusCancelled)
		got, err := f.svc.ListAvailableSlots(context.Background(), f.query())
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, clock(got.Slots))
	})

	t.Run("D: window shorter than treatment", func(t *testing.T) {
		f := newFixture(t)
		f.doctor.Schedule["Monday"] = &models.WorkingHours{Start: "09:45", End: "10:00"}
		got, err := f.svc.ListAvailableSlots(context.Background(), f.query())
		require.NoError(t, err)
		assert.Empty(t, got.Slots)
		assert.NotNil(t, got.Slots)
		assert.Equal(t, ReasonNoValidSlots, got.Reason)
	})

	t.Run("other doctors' appointments do not matter", func(t *testing.T) {
		f := newFixture(t)
		f.store.add(primitive.NewObjectID(), f.at("09:00"), 30, models.StatusRegistered)
		got, err := f.svc.ListAvailableSlots(context.Background(), f.query())
		require.NoError(t, err)
		assert.Len(t, got.Slots, 4)
	})

	t.Run("fully booked day", func(t *testing.T) {
		f := newFixture(t)
		f.store.add(f.doctor.ID, f.at("09:00"), 120, models.StatusEncounter)
		got, err := f.svc.ListAvailableSlots(context.Background(), f.query())
		require.NoError(t, err)
		assert.Empty(t, got.Slots)
		assert.Equal(t, ReasonNoValidSlots, got.Reason)
	})
}

func TestListAvailableSlotsNoWorkingHours(t *testing.T) {
	f := newFixture(t)
	for _, date := range []string{"2025-03-02", "2025-03-04", "2025-03-05", "2025-03-08"} {
		q := f.query()
		q.Date = date
		got, err := f.svc.ListAvailableSlots(context.Background(), q)
		require.NoError(t, err, date)
		assert.Empty(t, got.Slots, date)
		assert.Equal(t, ReasonNoWorkingHours, got.Reason, date)
	}
	assert.Zero(t, f.store.rangeCalls, "closed days need no appointment read")
}

func TestListAvailableSlotsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.add(f.doctor.ID, f.at("09:30"), 30, models.StatusRegistered)

	first, err := f.svc.ListAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	second, err := f.svc.ListAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)

	assert.Equal(t, first.Slots, second.Slots)
	assert.Equal(t, 2, f.store.rangeCalls, "each listing reads appointments fresh")
}

func TestListAvailableSlotsDropsPastStarts(t *testing.T) {
	f := newFixture(t)
	f.now = f.at("09:40")

	got, err := f.svc.ListAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "10:30"}, clock(got.Slots))

	f.now = f.at("10:31")
	got, err = f.svc.ListAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, ReasonNoValidSlots, got.Reason)
}

func TestListAvailableSlotsErrors(t *testing.T) {
	t.Run("missing input never reaches the store", func(t *testing.T) {
		f := newFixture(t)
		for _, q := range []SlotQuery{
			{DoctorID: f.doctor.ID.Hex(), TreatmentID: f.treatment.ID.Hex()},
			{DoctorID: f.doctor.ID.Hex(), Date: monday},
			{Date: monday, TreatmentID: f.treatment.ID.Hex()},
			{DoctorID: f.doctor.ID.Hex(), Date: "03/03/2025", TreatmentID: f.treatment.ID.Hex()},
			{DoctorID: "not-an-id", Date: monday, TreatmentID: f.treatment.ID.Hex()},
		} {
			_, err := f.svc.ListAvailableSlots(context.Background(), q)
			assert.ErrorIs(t, err, scheduling.ErrValidation)
		}
		assert.Zero(t, f.store.lookups)
		assert.Zero(t, f.store.rangeCalls)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		f := newFixture(t)
		q := f.query()
		q.DoctorID = primitive.NewObjectID().Hex()
		_, err := f.svc.ListAvailableSlots(context.Background(), q)
		assert.ErrorIs(t, err, scheduling.ErrNotFound)
		assert.NotErrorIs(t, err, scheduling.ErrIO)
	})

	t.Run("treatment not offered by doctor", func(t *testing.T) {
		f := newFixture(t)
		other := &models.Treatment{ID: primitive.NewObjectID(), Duration: 20}
		f.store.treatments[other.ID] = other
		q := f.query()
		q.TreatmentID = other.ID.Hex()
		_, err := f.svc.ListAvailableSlots(context.Background(), q)
		assert.ErrorIs(t, err, scheduling.ErrValidation)
	})

	t.Run("non-positive slot interval", func(t *testing.T) {
		f := newFixture(t)
		f.doctor.SlotInterval = 0
		_, err := f.svc.ListAvailableSlots(context.Background(), f.query())
		assert.ErrorIs(t, err, scheduling.ErrConfiguration)
	})

	t.Run("non-positive duration on a closed day", func(t *testing.T) {
		f := newFixture(t)
		f.treatment.Duration = 0
		q := f.query()
		q.Date = "2025-03-04"
		_, err := f.svc.ListAvailableSlots(context.Background(), q)
		assert.ErrorIs(t, err, scheduling.ErrConfiguration)
	})

	t.Run("malformed hours are only parsed on working days", func(t *testing.T) {
		f := newFixture(t)
		f.doctor.Schedule["Tuesday"] = &models.WorkingHours{Start: "9am", End: "noon"}
		q := f.query()
		q.Date = "2025-03-04"
		got, err := f.svc.ListAvailableSlots(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, ReasonNoWorkingHours, got.Reason)

		f.doctor.WorkingDays = append(f.doctor.WorkingDays, "Tuesday")
		_, err = f.svc.ListAvailableSlots(context.Background(), q)
		assert.ErrorIs(t, err, scheduling.ErrConfiguration)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.rangeErr = errors.New("connection reset by peer")
		_, err := f.svc.ListAvailableSlots(context.Background(), f.query())
		assert.ErrorIs(t, err, scheduling.ErrIO)
		assert.NotErrorIs(t, err, scheduling.ErrSlotConflict)
	})
}

// -- BookSlot --

func TestBookSlot(t *testing.T) {
	f := newFixture(t)
	req := f.request("09:30")

	apt, err := f.svc.BookSlot(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, f.at("09:30"), apt.StartTime)
	assert.Equal(t, f.at("10:00"), apt.EndTime)
	assert.Equal(t, models.StatusRegistered, apt.Status)
	assert.Equal(t, models.ConsultationDirect, apt.ConsultationType)
	assert.Equal(t, f.doctor.ID, apt.DoctorID)
	assert.Equal(t, f.treatment.ID, apt.TreatmentID)
	assert.Equal(t, req.PatientID, apt.PatientID.Hex())
	assert.False(t, apt.ID.IsZero())

	require.Len(t, f.store.appointments, 1)
	assert.Equal(t, apt.ID, f.store.appointments[0].ID)
	require.Len(t, f.notifier.booked, 1)
	assert.Equal(t, apt.ID, f.notifier.booked[0].ID)

	got, err := f.svc.ListAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "10:30"}, clock(got.Slots))
}

func TestBookSlotRevalidatesAgainstFreshData(t *testing.T) {
	f := newFixture(t)

	listed, err := f.svc.ListAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	require.Contains(t, clock(listed.Slots), "10:00")

	// Another session books an overlapping slot after the listing.
	taken := f.store.add(f.doctor.ID, f.at("09:45"), 30, models.StatusRegistered)

	_, err = f.svc.BookSlot(context.Background(), f.request("10:00"))
	require.ErrorIs(t, err, scheduling.ErrSlotConflict)

	var conflict *scheduling.SlotConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, taken.ID, conflict.ConflictingID)
	assert.Equal(t, f.at("10:00"), conflict.Start)

	assert.Len(t, f.store.appointments, 1, "nothing is created on conflict")
	assert.Empty(t, f.notifier.booked)
	assert.Equal(t, 2, f.store.rangeCalls)
}

func TestBookSlotTwoSessionsSameSlot(t *testing.T) {
	f := newFixture(t)

	// Both sessions see 09:00 as free.
	a, err := f.svc.ListAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	b, err := f.svc.ListAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	require.Equal(t, a.Slots, b.Slots)

	first, errA := f.svc.BookSlot(context.Background(), f.request("09:00"))
	_, errB := f.svc.BookSlot(context.Background(), f.request("09:00"))

	require.NoError(t, errA)
	assert.NotNil(t, first)
	assert.ErrorIs(t, errB, scheduling.ErrSlotConflict)
	assert.Len(t, f.store.appointments, 1)
}

func TestBookSlotBoundaries(t *testing.T) {
	t.Run("back to back after an appointment", func(t *testing.T) {
		f := newFixture(t)
		f.store.add(f.doctor.ID, f.at("09:00"), 30, models.StatusRegistered)
		_, err := f.svc.BookSlot(context.Background(), f.request("09:30"))
		assert.NoError(t, err)
	})

	t.Run("back to back before an appointment", func(t *testing.T) {
		f := newFixture(t)
		f.store.add(f.doctor.ID, f.at("10:00"), 30, models.StatusRegistered)
		_, err := f.svc.BookSlot(context.Background(), f.request("09:30"))
		assert.NoError(t, err)
	})

	t.Run("cancelled appointment frees its slot", func(t *testing.T) {
		f := newFixture(t)
		f.store.add(f.doctor.ID, f.at("10:00"), 30, models.StatusCancelled)
		_, err := f.svc.BookSlot(context.Background(), f.request("10:00"))
		assert.NoError(t, err)
	})

	t.Run("last slot ends at close", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BookSlot(context.Background(), f.request("10:30"))
		assert.NoError(t, err)
	})
}

func TestBookSlotValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, r *BookingRequest)
	}{
		{"missing slot", func(_ *fixture, r *BookingRequest) { r.SlotStart = "" }},
		{"missing date", func(_ *fixture, r *BookingRequest) { r.Date = "" }},
		{"missing treatment", func(_ *fixture, r *BookingRequest) { r.TreatmentID = "" }},
		{"missing patient", func(_ *fixture, r *BookingRequest) { r.PatientID = "" }},
		{"bad patient id", func(_ *fixture, r *BookingRequest) { r.PatientID = "abc" }},
		{"bad consultation type", func(_ *fixture, r *BookingRequest) { r.ConsultationType = "phone" }},
		{"malformed slot", func(_ *fixture, r *BookingRequest) { r.SlotStart = "9h30" }},
		{"slot in the past", func(f *fixture, r *BookingRequest) { f.now = f.at("09:45") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request("09:30")
			tt.mutate(f, &req)

			_, err := f.svc.BookSlot(context.Background(), req)
			assert.ErrorIs(t, err, scheduling.ErrValidation)
			assert.Zero(t, f.store.lookups)
			assert.Zero(t, f.store.rangeCalls)
		})
	}

	offGrid := []struct {
		name string
		slot string
		date string
	}{
		{"not on the interval grid", "09:10", monday},
		{"ends after close", "10:45", monday},
		{"before opening", "08:30", monday},
		{"closed day", "09:00", "2025-03-04"},
	}
	for _, tt := range offGrid {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request(tt.slot)
			req.Date = tt.date

			_, err := f.svc.BookSlot(context.Background(), req)
			assert.ErrorIs(t, err, scheduling.ErrValidation)
			assert.Empty(t, f.store.appointments)
		})
	}
}

func TestBookSlotFailures(t *testing.T) {
	t.Run("configuration", func(t *testing.T) {
		f := newFixture(t)
		f.treatment.Duration = -5
		_, err := f.svc.BookSlot(context.Background(), f.request("09:00"))
		assert.ErrorIs(t, err, scheduling.ErrConfiguration)
		assert.Zero(t, f.store.rangeCalls)
	})

	t.Run("re-fetch fails", func(t *testing.T) {
		f := newFixture(t)
		f.store.rangeErr = errors.New("server selection timeout")
		_, err := f.svc.BookSlot(context.Background(), f.request("09:00"))
		assert.ErrorIs(t, err, scheduling.ErrIO)
		assert.NotErrorIs(t, err, scheduling.ErrSlotConflict)
		assert.Empty(t, f.store.appointments)
	})

	t.Run("insert fails", func(t *testing.T) {
		f := newFixture(t)
		f.store.createErr = errors.New("not primary")
		_, err := f.svc.BookSlot(context.Background(), f.request("09:00"))
		assert.ErrorIs(t, err, scheduling.ErrIO)
		assert.Empty(t, f.notifier.booked)
	})

	t.Run("cancelled request writes nothing", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.svc.BookSlot(ctx, f.request("09:00"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, scheduling.ErrIO)
		assert.Empty(t, f.store.appointments)
	})
}

// Any sequence of successful bookings leaves no two live appointments of a
// doctor overlapping.
func TestBookSlotKeepsAppointmentsDisjoint(t *testing.T) {
	f := newFixture(t)
	f.doctor.SlotInterval = 15
	f.doctor.Schedule["Monday"] = &models.WorkingHours{Start: "08:00", End: "18:00"}

	durations := []int{15, 30, 45, 60, 90}
	for _, d := range durations {
		tr := &models.Treatment{ID: primitive.NewObjectID(), Duration: d}
		f.store.treatments[tr.ID] = tr
		f.doctor.TreatmentIDs = append(f.doctor.TreatmentIDs, tr.ID)
	}

	rng := rand.New(rand.NewSource(7))
	booked, conflicts := 0, 0
	for i := 0; i < 300; i++ {
		tr := f.doctor.TreatmentIDs[1+rng.Intn(len(durations))]
		minute := 8*60 + 15*rng.Intn(40)
		req := f.request(time.Date(2025, 3, 3, minute/60, minute%60, 0, 0, time.UTC).Format("15:04"))
		req.TreatmentID = tr.Hex()

		_, err := f.svc.BookSlot(context.Background(), req)
		switch {
		case err == nil:
			booked++
		case errors.Is(err, scheduling.ErrSlotConflict):
			conflicts++
		case errors.Is(err, scheduling.ErrValidation):
			// ran past closing time
		default:
			t.Fatalf("unexpected error: %v", err)
		}

		// Occasionally cancel a live appointment to reopen its interval.
		if rng.Intn(10) == 0 && len(f.store.appointments) > 0 {
			j := rng.Intn(len(f.store.appointments))
			f.store.appointments[j].Status = models.StatusCancelled
		}
	}
	require.Positive(t, booked)
	require.Positive(t, conflicts)

	live := make([]models.Appointment, 0)
	for _, a := range f.store.appointments {
		if !a.IsCancelled() {
			live = append(live, a)
		}
	}
	for i := range live {
		for j := i + 1; j < len(live); j++ {
			assert.False(t,
				scheduling.Overlaps(live[i].StartTime, live[i].EndTime, live[j].StartTime, live[j].EndTime),
				"%s-%s overlaps %s-%s",
				live[i].StartTime.Format("15:04"), live[i].EndTime.Format("15:04"),
				live[j].StartTime.Format("15:04"), live[j].EndTime.Format("15:04"),
			)
		}
	}
}
