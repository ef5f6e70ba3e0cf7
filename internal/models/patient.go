package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Patient holds the contact fields the booking flow needs for confirmations.
type Patient struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName string             `bson:"fullName" json:"fullName"`
	Phone    string             `bson:"phone" json:"phone"`
}
