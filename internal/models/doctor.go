package models

import (
	"slices"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Weekdays is indexed by time.Weekday (Sunday = 0 ... Saturday = 6).
var Weekdays = [7]string{
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
}

// WorkingHours is a time-of-day range in the hospital's wall clock, "HH:MM" 24h.
type WorkingHours struct {
	Start string `bson:"start" json:"start"`
	End   string `bson:"end" json:"end"`
}

// WeeklySchedule maps a weekday name from Weekdays to that day's hours.
type WeeklySchedule map[string]*WorkingHours

type Doctor struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	FullName     string               `bson:"fullName" json:"fullName"`
	WorkingDays  []string             `bson:"workingDays" json:"workingDays"`
	Schedule     WeeklySchedule       `bson:"schedule" json:"schedule"`
	SlotInterval int                  `bson:"slotInterval" json:"slotInterval"` // minutes
	TreatmentIDs []primitive.ObjectID `bson:"treatmentIds" json:"treatmentIds"`
	LocationIDs  []primitive.ObjectID `bson:"locationIds" json:"locationIds"`
	Active       bool                 `bson:"active" json:"active"`
}

func (d *Doctor) WorksOn(weekday string) bool {
	return slices.Contains(d.WorkingDays, weekday)
}

func (d *Doctor) OffersTreatment(id primitive.ObjectID) bool {
	return slices.Contains(d.TreatmentIDs, id)
}
