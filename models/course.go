package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Course holds the structure for the courses collection in mongo. The course
// catalog is owned by an external collaborator; this service only reads it to
// resolve chat participants and titles.
type Course struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	Title       string             `json:"courseTitle" bson:"courseTitle"`
	Creator     primitive.ObjectID `json:"creator" bson:"creator"`
	Category    string             `json:"category" bson:"category"`
	Level       string             `json:"courseLevel" bson:"courseLevel"`
	Price       int                `json:"coursePrice" bson:"coursePrice"`
	IsPublished bool               `json:"isPublished" bson:"isPublished"`
}

// CourseSummary is the slice of a course that chat payloads carry.
type CourseSummary struct {
	ID    primitive.ObjectID `json:"_id"`
	Title string             `json:"title"`
}

// Summary returns the denormalized view of the course for chat payloads.
func (c Course) Summary() CourseSummary {
	return CourseSummary{ID: c.ID, Title: c.Title}
}
