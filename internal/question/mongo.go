package question

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/victornm/dramquiz/internal/domain"
)

// Mongo reads the catalog from a MongoDB collection whose documents decode into
// domain.Question (the question id is the document _id).
type Mongo struct {
	collection *mongo.Collection
}

func NewMongo(client *mongo.Client, database, collection string) *Mongo {
	return &Mongo{collection: client.Database(database).Collection(collection)}
}

func (m *Mongo) FetchPool(ctx context.Context, q PoolQuery) ([]domain.Question, error) {
	cur, err := m.collection.Find(ctx, mongoFilter(q), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("question: find pool: %w", err)
	}
	defer cur.Close(ctx)

	var pool []domain.Question
	if err := cur.All(ctx, &pool); err != nil {
		return nil, fmt.Errorf("question: decode pool: %w", err)
	}
	return pool, nil
}

func mongoFilter(q PoolQuery) bson.M {
	filter := bson.M{}
	if q.Kind != "" {
		filter["kind"] = string(q.Kind)
	}
	if q.Category != nil {
		filter["category"] = string(*q.Category)
	}
	if q.Difficulty != nil {
		filter["difficulty"] = string(*q.Difficulty)
	}
	if len(q.ExcludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": q.ExcludeIDs}
	}
	return filter
}
