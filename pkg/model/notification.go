package model

import "time"

type Notification struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	RecipientID string    `json:"recipient_id" bson:"recipient_id"`
	Message     string    `json:"message" bson:"message"`
	Read        bool      `json:"read" bson:"read"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}
