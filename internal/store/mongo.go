package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	connectTimeout = 10 * time.Second
	opTimeout      = 5 * time.Second

	messagesCollection = "messages"
	usersCollection    = "users"
)

type messageDoc struct {
	Id           primitive.ObjectID `bson:"_id,omitempty"`
	Kind         string             `bson:"kind"`
	ProjectId    string             `bson:"projectId,omitempty"`
	SenderId     string             `bson:"senderId"`
	SenderName   string             `bson:"senderName,omitempty"`
	SenderAvatar string             `bson:"senderAvatar,omitempty"`
	ReceiverId   string             `bson:"receiverId,omitempty"`
	Content      string             `bson:"content"`
	MessageType  string             `bson:"messageType,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type userDoc struct {
	Id        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	AvatarUrl string             `bson:"avatarUrl,omitempty"`
}

// MongoStore implements MessageStore and ProfileDirectory against the
// platform's document database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(uri, dbName string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (s *MongoStore) messages() *mongo.Collection {
	return s.db.Collection(messagesCollection)
}

func (s *MongoStore) users() *mongo.Collection {
	return s.db.Collection(usersCollection)
}

func (s *MongoStore) SaveMessage(ctx context.Context, msg Message) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	doc := messageDoc{
		Kind:         string(msg.Kind),
		ProjectId:    msg.ProjectId,
		SenderId:     msg.SenderId,
		SenderName:   msg.SenderName,
		SenderAvatar: msg.SenderAvatar,
		ReceiverId:   msg.ReceiverId,
		Content:      msg.Content,
		MessageType:  msg.MessageType,
		CreatedAt:    time.Now().UTC().Round(time.Millisecond),
	}

	res, err := s.messages().InsertOne(ctx, doc)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return Message{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}

	msg.Id = id.Hex()
	msg.CreatedAt = doc.CreatedAt
	return msg, nil
}

func (s *MongoStore) ProjectMessages(ctx context.Context, projectId string, limit int64) ([]Message, error) {
	filter := bson.M{
		"kind":      string(KindProject),
		"projectId": projectId,
	}
	return s.findMessages(ctx, filter, limit)
}

func (s *MongoStore) Conversation(ctx context.Context, userA, userB string, limit int64) ([]Message, error) {
	filter := bson.M{
		"kind": string(KindPrivate),
		"$or": bson.A{
			bson.M{"senderId": userA, "receiverId": userB},
			bson.M{"senderId": userB, "receiverId": userA},
		},
	}
	return s.findMessages(ctx, filter, limit)
}

func (s *MongoStore) findMessages(ctx context.Context, filter bson.M, limit int64) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	// newest-first from the database, chronological for callers
	msgs := make([]Message, len(docs))
	for i, doc := range docs {
		msgs[len(docs)-1-i] = Message{
			Id:           doc.Id.Hex(),
			Kind:         MessageKind(doc.Kind),
			ProjectId:    doc.ProjectId,
			SenderId:     doc.SenderId,
			SenderName:   doc.SenderName,
			SenderAvatar: doc.SenderAvatar,
			ReceiverId:   doc.ReceiverId,
			Content:      doc.Content,
			MessageType:  doc.MessageType,
			CreatedAt:    doc.CreatedAt,
		}
	}
	return msgs, nil
}

func (s *MongoStore) Profile(ctx context.Context, userId string) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	id, err := primitive.ObjectIDFromHex(userId)
	if err != nil {
		return Profile{}, fmt.Errorf("invalid user id %q: %w", userId, err)
	}

	var doc userDoc
	if err := s.users().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return Profile{}, fmt.Errorf("find user %q: %w", userId, err)
	}

	return Profile{
		Id:        userId,
		Name:      doc.Name,
		AvatarUrl: doc.AvatarUrl,
	}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
