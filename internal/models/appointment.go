package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AppointmentStatus string

const (
	StatusRegistered     AppointmentStatus = "Registered"
	StatusEncounter      AppointmentStatus = "Encounter"
	StatusFinished       AppointmentStatus = "Finished"
	StatusCancelled      AppointmentStatus = "Cancelled"
	StatusWaitingPayment AppointmentStatus = "Waiting Payment"
)

type ConsultationType string

const (
	ConsultationDirect ConsultationType = "direct"
	ConsultationOnline ConsultationType = "online"
)

type Appointment struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DoctorID         primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	PatientID        primitive.ObjectID `bson:"patientId" json:"patientId"`
	TreatmentID      primitive.ObjectID `bson:"treatmentId" json:"treatmentId"`
	StartTime        time.Time          `bson:"startTime" json:"startTime"`
	EndTime          time.Time          `bson:"endTime" json:"endTime"`
	Status           AppointmentStatus  `bson:"status" json:"status"`
	ConsultationType ConsultationType   `bson:"consultationType" json:"consultationType"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}

// IsCancelled reports whether the appointment no longer occupies its interval.
func (a *Appointment) IsCancelled() bool {
	return a.Status == StatusCancelled
}
