package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Roles a user can hold. Accounts are owned by an external collaborator; the
// chat core reads them to resolve participants and to authenticate callers.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	Name     string             `json:"name" bson:"name"`
	Email    string             `json:"email" bson:"email"`
	Password string             `json:"-" bson:"password"`
	Role     string             `json:"role" bson:"role"`
	Avatar   string             `json:"avatar" bson:"avatar"`
}

// UserSummary is the slice of a user that chat payloads carry.
type UserSummary struct {
	ID     primitive.ObjectID `json:"_id"`
	Name   string             `json:"name"`
	Avatar string             `json:"avatar"`
	Role   string             `json:"role"`
}

// Summary returns the denormalized view of the user for chat payloads.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Role: u.Role}
}
