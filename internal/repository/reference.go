package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
	"github.com/harentsoaR/clinic-scheduler/internal/scheduling"
)

// DoctorRepository reads doctor profiles. Profiles are edited elsewhere.
type DoctorRepository struct {
	coll *mongo.Collection
}

func NewDoctorRepository(db *mongo.Database) *DoctorRepository {
	return &DoctorRepository{coll: db.Collection("doctors")}
}

func (r *DoctorRepository) GetDoctor(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := findByID(ctx, r.coll, id, &doctor); err != nil {
		return nil, fmt.Errorf("doctor %s: %w", id.Hex(), err)
	}
	return &doctor, nil
}

type TreatmentRepository struct {
	coll *mongo.Collection
}

func NewTreatmentRepository(db *mongo.Database) *TreatmentRepository {
	return &TreatmentRepository{coll: db.Collection("treatments")}
}

func (r *TreatmentRepository) GetTreatment(ctx context.Context, id primitive.ObjectID) (*models.Treatment, error) {
	var treatment models.Treatment
	if err := findByID(ctx, r.coll, id, &treatment); err != nil {
		return nil, fmt.Errorf("treatment %s: %w", id.Hex(), err)
	}
	return &treatment, nil
}

type PatientRepository struct {
	coll *mongo.Collection
}

func NewPatientRepository(db *mongo.Database) *PatientRepository {
	return &PatientRepository{coll: db.Collection("patients")}
}

func (r *PatientRepository) GetPatient(ctx context.Context, id primitive.ObjectID) (*models.Patient, error) {
	var patient models.Patient
	if err := findByID(ctx, r.coll, id, &patient); err != nil {
		return nil, fmt.Errorf("patient %s: %w", id.Hex(), err)
	}
	return &patient, nil
}

func findByID(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, out interface{}) error {
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return scheduling.ErrNotFound
	}
	return err
}
