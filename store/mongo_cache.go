package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoMatchIDField = "metadata.matchId"

// MongoMatchCache stores match documents as-is in a Mongo collection, keyed by
// metadata.matchId. This is the layout the model scripts read from.
type MongoMatchCache struct {
	coll *mongo.Collection
}

func NewMongoMatchCache(coll *mongo.Collection) *MongoMatchCache {
	return &MongoMatchCache{coll: coll}
}

// EnsureIndexes creates the unique index that backs upsert-by-ID.
func (c *MongoMatchCache) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: mongoMatchIDField, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_match_id"),
	})
	return err
}

func (c *MongoMatchCache) FindByIDs(ctx context.Context, ids []string) (map[string]json.RawMessage, error) {
	found := make(map[string]json.RawMessage)
	if len(ids) == 0 {
		return found, nil
	}

	cur, err := c.coll.Find(ctx,
		bson.M{mongoMatchIDField: bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 0}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		doc, err := documentFromBSON(cur.Current)
		if err != nil {
			return nil, err
		}
		rec, err := NewMatchRecord(doc)
		if err != nil {
			continue
		}
		found[rec.MatchID] = rec.Document
	}
	return found, cur.Err()
}

func (c *MongoMatchCache) Get(ctx context.Context, id string) (json.RawMessage, error) {
	raw, err := c.coll.FindOne(ctx,
		bson.M{mongoMatchIDField: id},
		options.FindOne().SetProjection(bson.M{"_id": 0}),
	).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return documentFromBSON(raw)
}

// Upsert replaces each document by match ID in a single ordered BulkWrite.
func (c *MongoMatchCache) Upsert(ctx context.Context, records []MatchRecord) (UpsertResult, error) {
	var res UpsertResult
	records = dedupeRecords(records)
	if len(records) == 0 {
		return res, nil
	}

	writes := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		w, err := replaceModel(r)
		if err != nil {
			return res, err
		}
		writes = append(writes, w)
	}

	out, err := c.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return res, err
	}
	res.Inserted = int(out.UpsertedCount)
	res.Updated = int(out.MatchedCount)
	return res, nil
}

func (c *MongoMatchCache) Count(ctx context.Context) (int64, error) {
	return c.coll.CountDocuments(ctx, bson.M{})
}

func (c *MongoMatchCache) Ping(ctx context.Context) error {
	return c.coll.Database().Client().Ping(ctx, nil)
}

// replaceModel turns a record into an upserting ReplaceOne keyed by metadata.matchId.
// Relaxed extended JSON keeps plain numbers plain: integers become int32/int64 and
// fractions become doubles.
func replaceModel(r MatchRecord) (*mongo.ReplaceOneModel, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(r.Document, false, &doc); err != nil {
		return nil, fmt.Errorf("convert match %s to bson: %w", r.MatchID, err)
	}
	return mongo.NewReplaceOneModel().
		SetFilter(bson.M{mongoMatchIDField: r.MatchID}).
		SetReplacement(doc).
		SetUpsert(true), nil
}

func documentFromBSON(raw bson.Raw) (json.RawMessage, error) {
	doc, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode cached match: %w", err)
	}
	return doc, nil
}
