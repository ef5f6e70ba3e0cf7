package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	RoleAdmin        = "admin"
	RoleReceptionist = "receptionist"
	RoleDoctor       = "doctor"

	// RolePending is given to self-registered accounts until an admin
	// assigns a staff role. It grants no access to /api.
	RolePending = "pending"
)

// StaffRoles are the roles allowed on /api.
var StaffRoles = []string{RoleAdmin, RoleReceptionist, RoleDoctor}

// User is a portal staff account.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName string             `bson:"fullName" json:"fullName"`
	Email    string             `bson:"email" json:"email"`
	Password string             `bson:"password" json:"-"`
	Role     string             `bson:"role" json:"role"` // "admin", "receptionist", "doctor", "pending"
}
