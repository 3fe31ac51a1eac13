package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message holds the structure for the messages collection in mongo. The
// timestamp is server-assigned at insert; a message never changes after
// creation except for the read flag.
type Message struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Chat      primitive.ObjectID `json:"chat" bson:"chat"`
	Sender    primitive.ObjectID `json:"sender" bson:"sender"`
	Receiver  primitive.ObjectID `json:"receiver" bson:"receiver"`
	Content   string             `json:"content" bson:"content"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
	Read      bool               `json:"read" bson:"read"`
}

// MessageResponse is the message as served to clients and pushed over the
// realtime channel, with sender and receiver denormalized.
type MessageResponse struct {
	ID        primitive.ObjectID `json:"_id"`
	Chat      primitive.ObjectID `json:"chat"`
	Sender    UserSummary        `json:"sender"`
	Receiver  UserSummary        `json:"receiver"`
	Content   string             `json:"content"`
	Timestamp time.Time          `json:"timestamp"`
	Read      bool               `json:"read"`
}

// SendMessageRequest holds the structure for the send message request body
type SendMessageRequest struct {
	CourseID   string `json:"courseId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

// SendMessageResponse wraps a created message together with its chat so a
// client starting a brand new conversation can adopt the created thread.
type SendMessageResponse struct {
	Data MessageResponse `json:"data"`
	Chat ChatResponse    `json:"chat"`
}

// MarkReadRequest holds the structure for the mark-read request body
type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds" validate:"required,min=1"`
}

// MarkReadResponse reports how many messages were actually flipped to read.
// Marking is idempotent, so a repeated call reports zero.
type MarkReadResponse struct {
	Modified int64 `json:"modified"`
}
