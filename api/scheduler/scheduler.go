package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/learnhub/learnhub-api/databases"
	"github.com/learnhub/learnhub-api/realtime"
)

// Scheduler runs periodic background jobs: a store and presence stats
// heartbeat for ops visibility.
type Scheduler struct {
	cron      *cron.Cron
	ChatDB    databases.ChatDatabase
	MessageDB databases.MessageDatabase
	Presence  *realtime.Registry
}

// New creates a new scheduler instance
func New(chatDB databases.ChatDatabase, messageDB databases.MessageDatabase, presence *realtime.Registry) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		ChatDB:    chatDB,
		MessageDB: messageDB,
		Presence:  presence,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc("@every 5m", s.logStoreStats); err != nil {
		zap.S().With(err).Error("failed to register stats job")
		return
	}
	s.cron.Start()
	zap.S().Info("scheduler started")
}

// Stop halts all scheduled jobs
func (s *Scheduler) Stop() {
	s.cron.Stop()
	zap.S().Info("scheduler stopped")
}

func (s *Scheduler) logStoreStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chats, err := s.ChatDB.CountDocuments(ctx, bson.M{})
	if err != nil {
		zap.S().With(err).Warn("stats job: failed to count chats")
		return
	}
	messages, err := s.MessageDB.CountDocuments(ctx, bson.M{})
	if err != nil {
		zap.S().With(err).Warn("stats job: failed to count messages")
		return
	}
	unread, err := s.MessageDB.CountDocuments(ctx, bson.M{"read": false})
	if err != nil {
		zap.S().With(err).Warn("stats job: failed to count unread messages")
		return
	}

	zap.S().Infow("store stats",
		"chats", chats,
		"messages", messages,
		"unreadMessages", unread,
		"connectedUsers", s.Presence.Len(),
	)
}
