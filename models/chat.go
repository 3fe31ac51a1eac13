package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat holds the structure for the chats collection in mongo. A chat is the
// persistent thread between one student and one instructor for one course;
// there is at most one chat per (course, student, instructor) triple.
type Chat struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Course     primitive.ObjectID `json:"course" bson:"course"`
	Student    primitive.ObjectID `json:"student" bson:"student"`
	Instructor primitive.ObjectID `json:"instructor" bson:"instructor"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ChatResponse is the chat as served to clients, with course and participant
// references replaced by denormalized summaries and the most recent message
// attached. LastMessage is nil for a chat that has no messages yet.
type ChatResponse struct {
	ID          primitive.ObjectID `json:"_id"`
	Course      CourseSummary      `json:"course"`
	Student     UserSummary        `json:"student"`
	Instructor  UserSummary        `json:"instructor"`
	LastMessage *MessageResponse   `json:"lastMessage,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}
