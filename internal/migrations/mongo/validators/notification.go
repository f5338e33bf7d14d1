package validators

import "go.mongodb.org/mongo-driver/bson"

var NotificationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"recipient_id", "message", "read", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":          bson.M{"bsonType": "objectId"},
			"recipient_id": bson.M{"bsonType": "string", "minLength": 1, "maxLength": 64},
			"message":      bson.M{"bsonType": "string", "minLength": 1, "maxLength": 1000},
			"read":         bson.M{"bsonType": "bool"},
			"created_at":   bson.M{"bsonType": "date"},
		},
	},
}
