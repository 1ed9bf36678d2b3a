package domain

// ChatRoom is the durable metadata record behind a room id. Live membership
// never lives here; it belongs to the presence manager.
type ChatRoom struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy   string `bson:"created_by" json:"created_by"`
	IsActive    bool   `bson:"is_active" json:"is_active"`
	CreatedAt   int64  `bson:"created_at" json:"created_at"`
}
