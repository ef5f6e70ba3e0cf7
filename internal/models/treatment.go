package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Treatment struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Duration int                `bson:"duration" json:"duration"` // minutes
}
