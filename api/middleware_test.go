package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/learnhub-api/api"
	"github.com/learnhub/learnhub-api/databases"
	"github.com/learnhub/learnhub-api/databases/mocks"
	"github.com/learnhub/learnhub-api/models"
)

func userDatabaseWith(t *testing.T, user *models.User, findErr error) databases.UserDatabase {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResult := &mocks.SingleResultHelper{}

	db.On("Collection", "users").Return(conn)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResult)
	if findErr != nil {
		singleResult.On("Decode", mock.Anything).Return(findErr)
	} else {
		singleResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			arg := args.Get(0).(*models.User)
			*arg = *user
		})
	}

	return databases.NewUserDatabase(db)
}

func TestMiddlewareDB_ValidateUser(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	assert.NoError(t, err)

	userID := primitive.NewObjectID()
	m := api.MiddlewareDB{DB: userDatabaseWith(t, &models.User{
		ID:       userID,
		Email:    "sam@learnhub.dev",
		Password: string(hash),
		Role:     models.RoleStudent,
	}, nil)}

	info, err := m.ValidateUser(context.Background(), nil, "sam@learnhub.dev", "hunter2")
	assert.NoError(t, err)
	assert.Equal(t, "sam@learnhub.dev", info.UserName())
	assert.Equal(t, userID.Hex(), info.ID())
}

func TestMiddlewareDB_ValidateUserWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	assert.NoError(t, err)

	m := api.MiddlewareDB{DB: userDatabaseWith(t, &models.User{
		ID:       primitive.NewObjectID(),
		Email:    "sam@learnhub.dev",
		Password: string(hash),
	}, nil)}

	info, err := m.ValidateUser(context.Background(), nil, "sam@learnhub.dev", "wrong")
	assert.Nil(t, info)
	assert.EqualError(t, err, "failed to compare password")
}

func TestMiddlewareDB_ValidateUserUnknownEmail(t *testing.T) {
	m := api.MiddlewareDB{DB: userDatabaseWith(t, nil, errors.New("mocked-error"))}

	info, err := m.ValidateUser(context.Background(), nil, "ghost@learnhub.dev", "hunter2")
	assert.Nil(t, info)
	assert.EqualError(t, err, "no matching email found")
}

func TestUserID(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/chat/chats", nil)
	assert.NoError(t, err)
	assert.Equal(t, "", api.UserID(req))

	id := primitive.NewObjectID().Hex()
	req = req.WithContext(api.WithUserID(req.Context(), id))
	assert.Equal(t, id, api.UserID(req))
}
