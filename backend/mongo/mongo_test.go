package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/autom8ter/docpipe/backend"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestOpenValidation(t *testing.T) {
	_, err := backend.Open(context.Background(), "mongo", map[string]any{"database": "x"})
	assert.True(t, errors.IsConnection(err))
}

func TestToBSON(t *testing.T) {
	d, err := toBSON(model.MustDocument(map[string]any{"b": 1, "a": "x"}))
	require.NoError(t, err)
	assert.Len(t, d, 2)
	_, err = toBSON(nil)
	assert.True(t, errors.IsBackend(err))
}

// TestServer runs against a live server when DOCPIPE_MONGO_URI is set
func TestServer(t *testing.T) {
	uri := os.Getenv("DOCPIPE_MONGO_URI")
	if uri == "" {
		t.Skip("DOCPIPE_MONGO_URI is not set")
	}
	ctx := context.Background()
	conn, err := Open(ctx, Config{URI: uri, Database: "docpipe_test_" + gofakeit.LetterN(8)})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, conn.database.Drop(ctx))
		assert.NoError(t, conn.Close(ctx))
	}()
	coll, err := conn.DropAndRecreate(ctx, "users")
	require.NoError(t, err)

	t.Run("insert", func(t *testing.T) {
		res, err := coll.InsertMany(ctx, model.Documents{
			model.MustDocument(map[string]any{"name": "alice", "score": 10}),
			model.MustDocument(map[string]any{"name": "bob", "score": 20}),
		})
		require.NoError(t, err)
		assert.Len(t, res.InsertedIDs, 2)
	})
	t.Run("update is idempotent", func(t *testing.T) {
		update := bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: true}}}}
		res, err := coll.UpdateMany(ctx, nil, update)
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.ModifiedCount)
		res, err = coll.UpdateMany(ctx, nil, update)
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.MatchedCount)
		assert.EqualValues(t, 0, res.ModifiedCount)
	})
	t.Run("find", func(t *testing.T) {
		cur, err := coll.Find(ctx, bson.D{{Key: "score", Value: bson.D{{Key: "$gt", Value: 10}}}}, nil)
		require.NoError(t, err)
		docs, err := model.Drain(ctx, cur)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "bob", docs[0].GetString("name"))
		assert.NotEmpty(t, docs[0].ID())
	})
	t.Run("aggregate", func(t *testing.T) {
		cur, err := coll.Aggregate(ctx, []bson.D{
			{{Key: "$group", Value: bson.D{{Key: "_id", Value: nil}, {Key: "avg", Value: bson.D{{Key: "$avg", Value: "$score"}}}}}},
		})
		require.NoError(t, err)
		docs, err := model.Drain(ctx, cur)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.EqualValues(t, 15, docs[0].GetFloat("avg"))
	})
	t.Run("count", func(t *testing.T) {
		count, err := coll.Count(ctx, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})
}
