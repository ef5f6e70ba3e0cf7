package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
	"github.com/harentsoaR/clinic-scheduler/internal/scheduling"
)

const appointmentsCollection = "appointments"

// AppointmentRepository stores appointments in MongoDB.
type AppointmentRepository struct {
	coll *mongo.Collection
}

func NewAppointmentRepository(db *mongo.Database) *AppointmentRepository {
	// Availability and commit checks must see the latest writes.
	collOpts := options.Collection().SetReadPreference(readpref.Primary())
	return &AppointmentRepository{coll: db.Collection(appointmentsCollection, collOpts)}
}

// GetAppointmentsInRange returns every appointment of the doctor, cancelled
// ones included, whose [startTime, endTime) intersects [from, to), ordered by
// start time.
func (r *AppointmentRepository) GetAppointmentsInRange(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Appointment, error) {
	filter := bson.M{
		"doctorId":  doctorID,
		"startTime": bson.M{"$lt": to},
		"endTime":   bson.M{"$gt": from},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}})

	return r.find(ctx, filter, findOptions)
}

// CreateAppointment inserts apt in a single write, assigning an id if unset.
func (r *AppointmentRepository) CreateAppointment(ctx context.Context, apt *models.Appointment) error {
	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, apt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// AppointmentFilter narrows List. Zero fields are ignored.
type AppointmentFilter struct {
	DoctorID  primitive.ObjectID
	PatientID primitive.ObjectID
	From      time.Time
	To        time.Time
	Status    models.AppointmentStatus
}

func (r *AppointmentRepository) List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	filter := bson.M{}
	if !f.DoctorID.IsZero() {
		filter["doctorId"] = f.DoctorID
	}
	if !f.PatientID.IsZero() {
		filter["patientId"] = f.PatientID
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		startTime := bson.M{}
		if !f.From.IsZero() {
			startTime["$gte"] = f.From
		}
		if !f.To.IsZero() {
			startTime["$lt"] = f.To
		}
		filter["startTime"] = startTime
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}})
	return r.find(ctx, filter, findOptions)
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var apt models.Appointment
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&apt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("appointment %s: %w", id.Hex(), scheduling.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find appointment %s: %w", id.Hex(), err)
	}
	return &apt, nil
}

// UpdateStatus sets the status of one appointment.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.AppointmentStatus) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("update appointment %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("appointment %s: %w", id.Hex(), scheduling.ErrNotFound)
	}
	return nil
}

// EnsureIndexes creates the doctor/start index used by range lookups.
func (r *AppointmentRepository) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "doctorId", Value: 1}, {Key: "startTime", Value: 1}},
			Options: options.Index().SetName("doctor_start_idx"),
		},
		{
			Keys:    bson.D{{Key: "patientId", Value: 1}, {Key: "startTime", Value: -1}},
			Options: options.Index().SetName("patient_start_idx"),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create appointment indexes: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Appointment, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return appointments, nil
}
