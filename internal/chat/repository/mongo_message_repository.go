package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoMessageRepository is the durable MessageRepository variant. It keeps
// one document per message and leans on conditional updates so ownership and
// tombstone checks hold under concurrent writers.
type mongoMessageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a mongo backed MessageRepository.
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepository{
		coll: db.Collection("chat_messages"),
	}
}

func (r *mongoMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *mongoMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &msg, nil
}

func (r *mongoMessageRepository) Edit(ctx context.Context, id, requesterID, newBody string, now time.Time) (*domain.Message, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.AuthorID != requesterID {
		return nil, domain.ErrNotMessageOwner
	}
	if current.IsDeleted {
		return nil, domain.ErrAlreadyDeleted
	}

	// Re-check the tombstone inside the update filter: a concurrent delete
	// between the read and this write must not resurrect the body.
	filter := bson.M{"_id": id, "author_id": requesterID, "is_deleted": false}
	update := bson.M{"$set": bson.M{
		"body":      newBody,
		"is_edited": true,
		"edited_at": now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Message
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrAlreadyDeleted
	}
	if err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	return &updated, nil
}

func (r *mongoMessageRepository) SoftDelete(ctx context.Context, id, requesterID string) (*domain.Message, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.AuthorID != requesterID {
		return nil, domain.ErrNotMessageOwner
	}
	if current.IsDeleted {
		return nil, domain.ErrAlreadyDeleted
	}

	filter := bson.M{"_id": id, "author_id": requesterID, "is_deleted": false}
	update := bson.M{"$set": bson.M{
		"body":       domain.TombstoneBody,
		"is_deleted": true,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Message
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrAlreadyDeleted
	}
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	return &updated, nil
}

func (r *mongoMessageRepository) ListByRoom(ctx context.Context, roomID string, opt ListOptions) ([]domain.Message, error) {
	filter := bson.M{"room_id": roomID}
	if !opt.IncludeTombstones {
		filter["is_deleted"] = false
	}

	if opt.BeforeID != "" {
		anchor, err := r.FindByID(ctx, opt.BeforeID)
		if err != nil {
			return nil, err
		}
		filter["created_at"] = bson.M{"$lt": anchor.CreatedAt}
	}

	findOpts := options.Find()
	if opt.Limit > 0 {
		// Take the most recent N then restore chronological order.
		findOpts.SetSort(bson.M{"created_at": -1}).SetLimit(int64(opt.Limit))
	} else {
		findOpts.SetSort(bson.M{"created_at": 1})
	}

	cur, err := r.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	var messages []domain.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	if opt.Limit > 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

func (r *mongoMessageRepository) Search(ctx context.Context, roomID, query string) ([]domain.Message, error) {
	pattern := regexp.QuoteMeta(query)
	filter := bson.M{
		"is_deleted": false,
		"$or": bson.A{
			bson.M{"body": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"author_name": bson.M{"$regex": pattern, "$options": "i"}},
		},
	}
	if roomID != "" {
		filter["room_id"] = roomID
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	var messages []domain.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return messages, nil
}

func (r *mongoMessageRepository) RoomStats(ctx context.Context, roomID string) (*domain.RoomStats, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "room_id", Value: roomID},
			{Key: "is_deleted", Value: false},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$room_id"},
			{Key: "total_messages", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "authors", Value: bson.D{{Key: "$addToSet", Value: "$author_id"}}},
			{Key: "last_message_at", Value: bson.D{{Key: "$max", Value: "$created_at"}}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("room stats aggregate: %w", err)
	}

	type result struct {
		TotalMessages int       `bson:"total_messages"`
		Authors       []string  `bson:"authors"`
		LastMessageAt time.Time `bson:"last_message_at"`
	}

	var results []result
	if err := cur.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("room stats decode: %w", err)
	}

	stats := &domain.RoomStats{}
	if len(results) > 0 {
		stats.TotalMessages = results[0].TotalMessages
		stats.DistinctAuthors = len(results[0].Authors)
		last := results[0].LastMessageAt
		stats.LastMessageAt = &last
	}
	return stats, nil
}

func (r *mongoMessageRepository) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{
		"is_deleted": true,
		"created_at": bson.M{"$lt": olderThan},
	})
	if err != nil {
		return 0, fmt.Errorf("sweep messages: %w", err)
	}
	return int(res.DeletedCount), nil
}
