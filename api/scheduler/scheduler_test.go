package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/learnhub/learnhub-api/databases"
	"github.com/learnhub/learnhub-api/databases/mocks"
	"github.com/learnhub/learnhub-api/realtime"
)

func TestScheduler_LogStoreStats(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	chats := &mocks.CollectionHelper{}
	messages := &mocks.CollectionHelper{}

	db.On("Collection", "chats").Return(chats)
	db.On("Collection", "messages").Return(messages)

	chats.On("CountDocuments", mock.Anything, bson.M{}).Return(int64(4), nil)
	messages.On("CountDocuments", mock.Anything, bson.M{}).Return(int64(12), nil)
	messages.On("CountDocuments", mock.Anything, bson.M{"read": false}).Return(int64(3), nil)

	s := New(
		databases.NewChatDatabase(db),
		databases.NewMessageDatabase(db),
		realtime.NewRegistry(),
	)
	s.logStoreStats()

	chats.AssertNumberOfCalls(t, "CountDocuments", 1)
	messages.AssertNumberOfCalls(t, "CountDocuments", 2)
}

func TestScheduler_StartAndStop(t *testing.T) {
	db := &mocks.DatabaseHelper{}

	s := New(
		databases.NewChatDatabase(db),
		databases.NewMessageDatabase(db),
		realtime.NewRegistry(),
	)
	s.Start()
	assert.NotEmpty(t, s.cron.Entries())
	s.Stop()
}
