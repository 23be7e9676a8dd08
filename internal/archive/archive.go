// Package archive writes a best-effort historical record of rooms after
// they end. It is a pure side channel: nothing in the live core ever reads
// an archived room back, so a Mongo outage can never affect gameplay.
package archive

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rs/zerolog"

	"buzzer/internal/model"
)

// Archiver persists a finished room's summary. Implementations must never
// block the caller for long or propagate a failure back into gameplay.
type Archiver interface {
	Archive(ctx context.Context, summary model.RoomSummary)
}

const writeTimeout = 3 * time.Second

// MongoArchiver upserts into the room_history collection.
type MongoArchiver struct {
	collection *mongo.Collection
	log        zerolog.Logger
}

func NewMongoArchiver(db *mongo.Database, log zerolog.Logger) *MongoArchiver {
	return &MongoArchiver{collection: db.Collection("room_history"), log: log}
}

func (a *MongoArchiver) Archive(ctx context.Context, summary model.RoomSummary) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := a.collection.UpdateOne(ctx,
		bson.M{"code": summary.Code, "createdAt": summary.CreatedAt},
		bson.M{"$set": summary},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		a.log.Warn().Err(err).Str("room_code", summary.Code).Msg("room archive write failed")
	}
}

// NoopArchiver is used when no Mongo URI is configured — archiving is an
// enrichment, not a requirement (§4's non-goal of persistence-as-authority
// extends to the archive's own availability).
type NoopArchiver struct{}

func (NoopArchiver) Archive(context.Context, model.RoomSummary) {}
