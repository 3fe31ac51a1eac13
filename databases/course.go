package databases

// go generate: mockery --name CourseDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learnhub/learnhub-api/models"
)

const courseCollectionName = "courses"

// CourseDatabase contains the methods to use with the course database. The
// course catalog is written by an external collaborator; this service only
// reads it.
type CourseDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Course, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Course, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type courseDatabase struct {
	db DatabaseHelper
}

// NewCourseDatabase initializes a new instance of course database with the provided db connection
func NewCourseDatabase(db DatabaseHelper) CourseDatabase {
	return &courseDatabase{
		db: db,
	}
}

func (c *courseDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Course, error) {
	course := &models.Course{}
	err := c.db.Collection(courseCollectionName).FindOne(ctx, filter, opts...).Decode(course)
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (c *courseDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Course, error) {
	var courses []models.Course
	curr, err := c.db.Collection(courseCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &courses)
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (c *courseDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(courseCollectionName).CountDocuments(ctx, filter, opts...)
}
