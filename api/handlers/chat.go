package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/learnhub/learnhub-api/api"
	"github.com/learnhub/learnhub-api/config"
	"github.com/learnhub/learnhub-api/databases"
	"github.com/learnhub/learnhub-api/models"
)

var validate = validator.New()

// MessageNotifier pushes a committed message to a receiver's live connection.
// Delivery is best effort; the message is already persisted when this runs.
type MessageNotifier interface {
	PushNewMessage(userID string, message models.MessageResponse)
}

// Chat exported for testing purposes
type Chat struct {
	ChatDB    databases.ChatDatabase
	MessageDB databases.MessageDatabase
	CourseDB  databases.CourseDatabase
	UserDB    databases.UserDatabase
	Notifier  MessageNotifier
}

// ChatsHandler returns the caller's chats, most recent activity first, each
// with denormalized course/participant summaries and the last message
func (c Chat) ChatsHandler(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	chats, err := c.ChatDB.Find(ctx, bson.M{"$or": []bson.M{
		{"student": viewerID},
		{"instructor": viewerID},
	}})
	if err != nil {
		config.ErrorStatus("failed to get chats", http.StatusInternalServerError, w, err)
		return
	}

	responses := make([]models.ChatResponse, 0, len(chats))
	for _, chat := range chats {
		resp, err := c.enrichChat(ctx, chat)
		if err != nil {
			config.ErrorStatus("failed to load chat details", http.StatusInternalServerError, w, err)
			return
		}
		responses = append(responses, resp)
	}

	sort.SliceStable(responses, func(i, j int) bool {
		return lastActivity(responses[i]).After(lastActivity(responses[j]))
	})

	b, err := json.Marshal(models.DataResponse{Data: responses})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MessagesHandler returns a chat's transcript oldest first. Fetching the
// transcript marks every returned message addressed to the caller as read;
// the response reflects the committed read state.
func (c Chat) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(w, r)
	if !ok {
		return
	}

	chatID, err := primitive.ObjectIDFromHex(mux.Vars(r)["chat_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	chat, err := c.ChatDB.FindOne(ctx, bson.M{"_id": chatID})
	if err != nil {
		config.ErrorStatus("failed to get chat by ID", http.StatusNotFound, w, err)
		return
	}
	if chat.Student != viewerID && chat.Instructor != viewerID {
		config.ErrorStatus("chat does not belong to caller", http.StatusNotFound, w, errors.New("caller is not a participant"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	messages, err := c.MessageDB.FindByChat(ctx, chat.ID, limit, page)
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusInternalServerError, w, err)
		return
	}

	unreadIDs := make([]primitive.ObjectID, 0, len(messages))
	for _, msg := range messages {
		if msg.Receiver == viewerID && !msg.Read {
			unreadIDs = append(unreadIDs, msg.ID)
		}
	}
	if _, err := c.markReadForViewer(ctx, viewerID, unreadIDs); err != nil {
		config.ErrorStatus("failed to mark messages as read", http.StatusInternalServerError, w, err)
		return
	}

	student, instructor, err := c.participants(ctx, chat)
	if err != nil {
		config.ErrorStatus("failed to get chat participants", http.StatusNotFound, w, err)
		return
	}

	responses := make([]models.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		if msg.Receiver == viewerID {
			// reflect the mark-read commit above
			msg.Read = true
		}
		responses = append(responses, messageResponse(msg, student, instructor))
	}

	b, err := json.Marshal(models.DataResponse{Data: responses})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// SendHandler validates and persists a message, creating the chat for the
// (course, student, instructor) triple on first contact, then pushes the
// message to the receiver if they are online. The write commits regardless
// of push delivery.
func (c Chat) SendHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("courseId, receiverId and content are required", http.StatusBadRequest, w, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		config.ErrorStatus("message content cannot be empty", http.StatusBadRequest, w, errors.New("content is whitespace only"))
		return
	}

	courseID, err := primitive.ObjectIDFromHex(req.CourseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	receiverID, err := primitive.ObjectIDFromHex(req.ReceiverID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	course, err := c.CourseDB.FindOne(ctx, bson.M{"_id": courseID})
	if err != nil {
		config.ErrorStatus("failed to get course by ID", http.StatusNotFound, w, err)
		return
	}
	sender, err := c.UserDB.FindOne(ctx, bson.M{"_id": senderID})
	if err != nil {
		config.ErrorStatus("failed to get sender by ID", http.StatusNotFound, w, err)
		return
	}
	receiver, err := c.UserDB.FindOne(ctx, bson.M{"_id": receiverID})
	if err != nil {
		config.ErrorStatus("failed to get receiver by ID", http.StatusNotFound, w, err)
		return
	}

	student, instructor := sender, receiver
	if sender.Role == models.RoleInstructor {
		student, instructor = receiver, sender
	}

	chat, err := c.getOrCreateChat(ctx, course.ID, student.ID, instructor.ID)
	if err != nil {
		config.ErrorStatus("failed to resolve chat", http.StatusInternalServerError, w, err)
		return
	}

	msg := models.Message{
		Chat:      chat.ID,
		Sender:    sender.ID,
		Receiver:  receiver.ID,
		Content:   req.Content,
		Timestamp: time.Now().UTC(),
		Read:      false,
	}
	res, err := c.MessageDB.InsertOne(ctx, msg)
	if err != nil {
		config.ErrorStatus("failed to send message", http.StatusInternalServerError, w, err)
		return
	}
	if oid, ok := res.Decode().(primitive.ObjectID); ok {
		msg.ID = oid
	}

	if _, err := c.ChatDB.UpdateOne(ctx, bson.M{"_id": chat.ID}, bson.M{"$set": bson.M{"updatedAt": msg.Timestamp}}); err != nil {
		zap.S().Warnw("failed to bump chat activity", "chatId", chat.ID.Hex(), "error", err)
	}

	mr := messageResponse(msg, student, instructor)

	// best-effort accelerant; the fetch path is the durability backstop
	if c.Notifier != nil {
		c.Notifier.PushNewMessage(receiver.ID.Hex(), mr)
	}

	chatResp := models.ChatResponse{
		ID:          chat.ID,
		Course:      course.Summary(),
		Student:     student.Summary(),
		Instructor:  instructor.Summary(),
		LastMessage: &mr,
		UpdatedAt:   msg.Timestamp,
	}

	b, err := json.Marshal(models.SendMessageResponse{Data: mr, Chat: chatResp})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MarkReadHandler flips the given messages to read. Only messages addressed
// to the caller are touched, and a message already read stays read, so the
// operation is idempotent; the response carries the count actually changed.
func (c Chat) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req models.MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("messageIds are required", http.StatusBadRequest, w, err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
			return
		}
		ids = append(ids, id)
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.MessageDB.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "receiver": viewerID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		config.ErrorStatus("failed to mark messages as read", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(models.DataResponse{Data: models.MarkReadResponse{Modified: res.ModifiedCount}})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// getOrCreateChat looks up the chat for the triple and creates it when
// absent. The lookup is deterministic, so a repeated call returns the same
// chat identity.
func (c Chat) getOrCreateChat(ctx context.Context, courseID, studentID, instructorID primitive.ObjectID) (*models.Chat, error) {
	filter := bson.M{"course": courseID, "student": studentID, "instructor": instructorID}
	chat, err := c.ChatDB.FindOne(ctx, filter)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := models.Chat{
		Course:     courseID,
		Student:    studentID,
		Instructor: instructorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := c.ChatDB.InsertOne(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.Decode().(primitive.ObjectID); ok {
		fresh.ID = oid
	}
	return &fresh, nil
}

// markReadForViewer flips the given messages to read, restricted to ones
// addressed to the viewer. Scoping the update to ids the caller actually
// fetched keeps the side effect aligned with the returned transcript: a
// message inserted after the fetch stays unread until it is served. The
// filter only matches read=false documents, so concurrent listings by the
// same viewer cannot double count.
func (c Chat) markReadForViewer(ctx context.Context, viewerID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := c.MessageDB.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "receiver": viewerID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// enrichChat resolves the chat's course and participants and attaches the
// most recent message.
func (c Chat) enrichChat(ctx context.Context, chat models.Chat) (models.ChatResponse, error) {
	course, err := c.CourseDB.FindOne(ctx, bson.M{"_id": chat.Course})
	if err != nil {
		return models.ChatResponse{}, err
	}
	student, instructor, err := c.participants(ctx, &chat)
	if err != nil {
		return models.ChatResponse{}, err
	}

	resp := models.ChatResponse{
		ID:         chat.ID,
		Course:     course.Summary(),
		Student:    student.Summary(),
		Instructor: instructor.Summary(),
		UpdatedAt:  chat.UpdatedAt,
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(1)
	last, err := c.MessageDB.Find(ctx, bson.M{"chat": chat.ID}, opts)
	if err != nil {
		return models.ChatResponse{}, err
	}
	if len(last) > 0 {
		mr := messageResponse(last[0], student, instructor)
		resp.LastMessage = &mr
	}
	return resp, nil
}

func (c Chat) participants(ctx context.Context, chat *models.Chat) (*models.User, *models.User, error) {
	student, err := c.UserDB.FindOne(ctx, bson.M{"_id": chat.Student})
	if err != nil {
		return nil, nil, err
	}
	instructor, err := c.UserDB.FindOne(ctx, bson.M{"_id": chat.Instructor})
	if err != nil {
		return nil, nil, err
	}
	return student, instructor, nil
}

// messageResponse denormalizes a message against the chat's two participants.
func messageResponse(msg models.Message, student, instructor *models.User) models.MessageResponse {
	sender, receiver := student.Summary(), instructor.Summary()
	if msg.Sender == instructor.ID {
		sender, receiver = instructor.Summary(), student.Summary()
	}
	return models.MessageResponse{
		ID:        msg.ID,
		Chat:      msg.Chat,
		Sender:    sender,
		Receiver:  receiver,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		Read:      msg.Read,
	}
}

func lastActivity(chat models.ChatResponse) time.Time {
	if chat.LastMessage != nil {
		return chat.LastMessage.Timestamp
	}
	return chat.UpdatedAt
}

// callerID pulls the authenticated caller out of the request context.
func callerID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	raw := api.UserID(r)
	if raw == "" {
		config.ErrorStatus("no caller identity", http.StatusUnauthorized, w, errors.New("missing authenticated user"))
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		config.ErrorStatus("invalid caller identity", http.StatusUnauthorized, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}
