package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrRoomNotFound unknown room id in the metadata store
var ErrRoomNotFound = errors.New("room not found")

// RoomRepository definition chat room metadata store. Plain CRUD, no
// concurrency hazard beyond the store's own locking.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room *domain.ChatRoom) error
	FindByID(ctx context.Context, roomID string) (*domain.ChatRoom, error)
	ListRooms(ctx context.Context) ([]domain.ChatRoom, error)
}

type mongoRoomRepository struct {
	coll *mongo.Collection
}

// NewMongoRoomRepository create a mongo backed RoomRepository.
func NewMongoRoomRepository(db *mongo.Database) RoomRepository {
	return &mongoRoomRepository{
		coll: db.Collection("chat_rooms"),
	}
}

func (r *mongoRoomRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	_, err := r.coll.InsertOne(ctx, room)
	return err
}

func (r *mongoRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := r.coll.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room: %w", err)
	}
	return &room, nil
}

func (r *mongoRoomRepository) ListRooms(ctx context.Context) ([]domain.ChatRoom, error) {
	cur, err := r.coll.Find(ctx, bson.M{"is_active": true}, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var rooms []domain.ChatRoom
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}

type memoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.ChatRoom
	order []string
}

// NewMemoryRoomRepository create an in-memory RoomRepository.
func NewMemoryRoomRepository() RoomRepository {
	return &memoryRoomRepository{
		rooms: make(map[string]*domain.ChatRoom),
	}
}

func (r *memoryRoomRepository) CreateRoom(_ context.Context, room *domain.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *room
	r.rooms[room.ID] = &stored
	r.order = append(r.order, room.ID)
	return nil
}

func (r *memoryRoomRepository) FindByID(_ context.Context, roomID string) (*domain.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := *room
	return &out, nil
}

func (r *memoryRoomRepository) ListRooms(_ context.Context) ([]domain.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]domain.ChatRoom, 0, len(r.order))
	for _, id := range r.order {
		if room, ok := r.rooms[id]; ok && room.IsActive {
			rooms = append(rooms, *room)
		}
	}
	return rooms, nil
}
