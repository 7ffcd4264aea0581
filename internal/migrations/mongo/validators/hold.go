package validators

import "go.mongodb.org/mongo-driver/bson"

var holdStatuses = bson.A{"HOLD", "CONFIRMED", "RELEASED", "EXPIRED"}

var HoldValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"slot_id",
			"holder_id",
			"status",
			"created_at",
			"expires_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"slot_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"holder_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"status": bson.M{
				"enum": holdStatuses,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

// SlotClaimValidator covers the per-slot claim document, keyed by slot id.
var SlotClaimValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"hold_id",
			"holder_id",
			"status",
			"expires_at",
		},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"hold_id":    bson.M{"bsonType": "string"},
			"holder_id":  bson.M{"bsonType": "string"},
			"status":     bson.M{"enum": holdStatuses},
			"expires_at": bson.M{"bsonType": "date"},
		},
	},
}
