package badger

import (
	"context"
	"testing"

	"github.com/autom8ter/docpipe/backend"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func testConn(t *testing.T) *Conn {
	conn, err := Open(Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, conn.Close(context.Background()))
	})
	return conn
}

func seedUsers(t *testing.T, coll backend.Collection) {
	ctx := context.Background()
	_, err := coll.InsertMany(ctx, model.Documents{
		model.MustDocument(map[string]any{"name": "alice", "dept": "a", "score": 10, "tags": []any{"x"}}),
		model.MustDocument(map[string]any{"name": "bob", "dept": "a", "score": 20}),
		model.MustDocument(map[string]any{"name": "carol", "dept": "b", "score": 30, "tags": []any{"x", "y"}}),
		model.MustDocument(map[string]any{"name": "dave", "dept": "b", "score": 40}),
	})
	require.NoError(t, err)
}

func drain(t *testing.T) func(model.Cursor, error) model.Documents {
	return func(cursor model.Cursor, err error) model.Documents {
		require.NoError(t, err)
		docs, err := model.Drain(context.Background(), cursor)
		require.NoError(t, err)
		return docs
	}
}

func names(docs model.Documents) []string {
	var out []string
	docs.ForEach(func(next *model.Document, i int) {
		out = append(out, next.GetString("name"))
	})
	return out
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, backend.Registered(), "badger")
	conn, err := backend.Open(context.Background(), "badger", map[string]any{"storage_path": ""})
	require.NoError(t, err)
	assert.NoError(t, conn.Close(context.Background()))
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	conn := testConn(t)
	coll, err := conn.DropAndRecreate(ctx, "users")
	require.NoError(t, err)
	seedUsers(t, coll)

	t.Run("insertion order", func(t *testing.T) {
		docs := drain(t)(coll.Find(ctx, nil, nil))
		assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, names(docs))
		for _, doc := range docs {
			assert.NotEmpty(t, doc.ID())
		}
	})
	t.Run("filter", func(t *testing.T) {
		docs := drain(t)(coll.Find(ctx, bson.D{{Key: "score", Value: bson.D{{Key: "$gte", Value: 20}}}}, nil))
		assert.Equal(t, []string{"bob", "carol", "dave"}, names(docs))
	})
	t.Run("array element equality", func(t *testing.T) {
		docs := drain(t)(coll.Find(ctx, bson.D{{Key: "tags", Value: "y"}}, nil))
		assert.Equal(t, []string{"carol"}, names(docs))
	})
	t.Run("projection", func(t *testing.T) {
		docs := drain(t)(coll.Find(ctx, bson.D{{Key: "name", Value: "bob"}}, bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 0}}))
		require.Len(t, docs, 1)
		assert.Equal(t, []string{"name"}, docs[0].Keys())
	})
	t.Run("find by id", func(t *testing.T) {
		all := drain(t)(coll.Find(ctx, nil, nil))
		docs := drain(t)(coll.Find(ctx, bson.D{{Key: "_id", Value: all[2].ID()}}, nil))
		assert.Equal(t, []string{"carol"}, names(docs))
	})
	t.Run("duplicate id", func(t *testing.T) {
		all := drain(t)(coll.Find(ctx, nil, nil))
		_, err := coll.InsertMany(ctx, model.Documents{model.MustDocument(map[string]any{"_id": all[0].ID()})})
		assert.True(t, errors.IsBackend(err))
		count, err := coll.Count(ctx, nil)
		assert.NoError(t, err)
		assert.EqualValues(t, 4, count)
	})
	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := coll.Count(canceled, nil)
		assert.True(t, errors.IsBackend(err))
	})
}

func TestWrites(t *testing.T) {
	ctx := context.Background()
	conn := testConn(t)
	coll, err := conn.DropAndRecreate(ctx, "users")
	require.NoError(t, err)
	seedUsers(t, coll)

	t.Run("update many", func(t *testing.T) {
		update := bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: true}}}}
		result, err := coll.UpdateMany(ctx, bson.D{{Key: "dept", Value: "a"}}, update)
		require.NoError(t, err)
		assert.EqualValues(t, 2, result.MatchedCount)
		assert.EqualValues(t, 2, result.ModifiedCount)

		result, err = coll.UpdateMany(ctx, bson.D{{Key: "dept", Value: "a"}}, update)
		require.NoError(t, err)
		assert.EqualValues(t, 2, result.MatchedCount)
		assert.EqualValues(t, 0, result.ModifiedCount)
	})
	t.Run("pull", func(t *testing.T) {
		result, err := coll.UpdateMany(ctx, bson.D{}, bson.D{{Key: "$pull", Value: bson.D{{Key: "tags", Value: "x"}}}})
		require.NoError(t, err)
		assert.EqualValues(t, 4, result.MatchedCount)
		assert.EqualValues(t, 2, result.ModifiedCount)
		count, err := coll.Count(ctx, bson.D{{Key: "tags", Value: "x"}})
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
	t.Run("delete one", func(t *testing.T) {
		result, err := coll.DeleteOne(ctx, bson.D{{Key: "dept", Value: "b"}})
		require.NoError(t, err)
		assert.EqualValues(t, 1, result.DeletedCount)
		docs := drain(t)(coll.Find(ctx, bson.D{{Key: "dept", Value: "b"}}, nil))
		assert.Equal(t, []string{"dave"}, names(docs))
	})
	t.Run("delete many none", func(t *testing.T) {
		result, err := coll.DeleteMany(ctx, bson.D{{Key: "dept", Value: "z"}})
		require.NoError(t, err)
		assert.EqualValues(t, 0, result.DeletedCount)
	})
	t.Run("bulk write sees earlier writes", func(t *testing.T) {
		result, err := coll.BulkWrite(ctx, []backend.WriteModel{
			{InsertOne: &backend.InsertOneModel{Document: model.MustDocument(map[string]any{"name": "erin", "dept": "c"})}},
			{UpdateOne: &backend.UpdateOneModel{
				Filter: bson.D{{Key: "name", Value: "erin"}},
				Update: bson.D{{Key: "$inc", Value: bson.D{{Key: "score", Value: 5}}}},
			}},
			{DeleteOne: &backend.DeleteOneModel{Filter: bson.D{{Key: "name", Value: "dave"}}}},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, result.InsertedCount)
		assert.EqualValues(t, 1, result.MatchedCount)
		assert.EqualValues(t, 1, result.ModifiedCount)
		assert.EqualValues(t, 1, result.DeletedCount)
		docs := drain(t)(coll.Find(ctx, bson.D{{Key: "name", Value: "erin"}}, nil))
		require.Len(t, docs, 1)
		assert.EqualValues(t, 5, docs[0].GetFloat("score"))
	})
	t.Run("immutable id", func(t *testing.T) {
		_, err := coll.UpdateMany(ctx, nil, bson.D{{Key: "$set", Value: bson.D{{Key: "_id", Value: "x"}}}})
		assert.True(t, errors.IsBackend(err))
	})
	t.Run("drop and recreate", func(t *testing.T) {
		coll, err := conn.DropAndRecreate(ctx, "users")
		require.NoError(t, err)
		count, err := coll.Count(ctx, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	conn := testConn(t)
	coll, err := conn.DropAndRecreate(ctx, "users")
	require.NoError(t, err)
	seedUsers(t, coll)

	t.Run("group by key", func(t *testing.T) {
		docs := drain(t)(coll.Aggregate(ctx, []bson.D{
			{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$dept"},
				{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$score"}}},
			}}},
			{{Key: "$sort", Value: bson.D{{Key: "_id", Value: -1}}}},
		}))
		require.Len(t, docs, 2)
		assert.Equal(t, "b", docs[0].GetString("_id"))
		assert.EqualValues(t, 35, docs[0].GetFloat("avg"))
		assert.EqualValues(t, 15, docs[1].GetFloat("avg"))
	})
	t.Run("keyless group", func(t *testing.T) {
		docs := drain(t)(coll.Aggregate(ctx, []bson.D{
			{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$score"}}},
			}}},
		}))
		require.Len(t, docs, 1)
		assert.EqualValues(t, 25, docs[0].GetFloat("avg"))
	})
	t.Run("empty group", func(t *testing.T) {
		docs := drain(t)(coll.Aggregate(ctx, []bson.D{
			{{Key: "$match", Value: bson.D{{Key: "dept", Value: "z"}}}},
			{{Key: "$group", Value: bson.D{{Key: "_id", Value: nil}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		}))
		assert.Len(t, docs, 0)
	})
	t.Run("unwind and count", func(t *testing.T) {
		docs := drain(t)(coll.Aggregate(ctx, []bson.D{
			{{Key: "$unwind", Value: "$tags"}},
			{{Key: "$count", Value: "tags"}},
		}))
		require.Len(t, docs, 1)
		assert.EqualValues(t, 3, docs[0].GetFloat("tags"))
	})
	t.Run("add fields project limit", func(t *testing.T) {
		docs := drain(t)(coll.Aggregate(ctx, []bson.D{
			{{Key: "$addFields", Value: bson.D{{Key: "who", Value: "$name"}}}},
			{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}, {Key: "who", Value: 1}}}},
			{{Key: "$skip", Value: 1}},
			{{Key: "$limit", Value: 2}},
		}))
		require.Len(t, docs, 2)
		assert.Equal(t, "bob", docs[0].GetString("who"))
		assert.Equal(t, []string{"who"}, docs[1].Keys())
	})
	t.Run("stage order", func(t *testing.T) {
		students, err := conn.DropAndRecreate(ctx, "students")
		require.NoError(t, err)
		_, err = students.InsertMany(ctx, model.Documents{model.MustDocument(map[string]any{
			"_id": "s1",
			"scores": []any{
				map[string]any{"type": "exam", "score": 70},
				map[string]any{"type": "quiz", "score": 80},
				map[string]any{"type": "homework", "score": 90},
			},
		})})
		require.NoError(t, err)
		unwind := bson.D{{Key: "$unwind", Value: "$scores"}}
		match := bson.D{{Key: "$match", Value: bson.D{{Key: "scores.type", Value: "quiz"}}}}
		docs := drain(t)(students.Aggregate(ctx, []bson.D{unwind, match}))
		require.Len(t, docs, 1)
		assert.EqualValues(t, 80, docs[0].GetFloat("scores.score"))
		assert.Len(t, drain(t)(students.Aggregate(ctx, []bson.D{match, unwind})), 3)
	})
	t.Run("sort by array field", func(t *testing.T) {
		mixed, err := conn.DropAndRecreate(ctx, "mixed")
		require.NoError(t, err)
		_, err = mixed.InsertMany(ctx, model.Documents{
			model.MustDocument(map[string]any{"_id": "y", "v": 5}),
			model.MustDocument(map[string]any{"_id": "x", "v": []any{1, 10}}),
			model.MustDocument(map[string]any{"_id": "z", "v": 7}),
		})
		require.NoError(t, err)
		ids := func(docs model.Documents) []string {
			return lo.Map(docs, func(doc *model.Document, _ int) string { return doc.GetString("_id") })
		}
		asc := drain(t)(mixed.Aggregate(ctx, []bson.D{{{Key: "$sort", Value: bson.D{{Key: "v", Value: 1}}}}}))
		assert.Equal(t, []string{"x", "y", "z"}, ids(asc))
		desc := drain(t)(mixed.Aggregate(ctx, []bson.D{{{Key: "$sort", Value: bson.D{{Key: "v", Value: -1}}}}}))
		assert.Equal(t, []string{"x", "z", "y"}, ids(desc))
	})
	t.Run("unsupported stage", func(t *testing.T) {
		_, err := coll.Aggregate(ctx, []bson.D{{{Key: "$lookup", Value: bson.D{}}}})
		assert.True(t, errors.IsBackend(err))
	})
}

func TestCursorClose(t *testing.T) {
	ctx := context.Background()
	conn := testConn(t)
	coll, err := conn.DropAndRecreate(ctx, "users")
	require.NoError(t, err)
	seedUsers(t, coll)
	cursor, err := coll.Find(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, cursor.Next(ctx))
	assert.Equal(t, "alice", cursor.Document().GetString("name"))
	assert.NoError(t, cursor.Close(ctx))
	assert.False(t, cursor.Next(ctx))
	assert.Nil(t, cursor.Document())
	assert.NoError(t, cursor.Close(ctx))

	drained, err := coll.Find(ctx, nil, nil)
	require.NoError(t, err)
	docs, err := model.Drain(ctx, drained)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
	assert.NoError(t, drained.Close(ctx))
	_, err = coll.InsertMany(ctx, model.Documents{model.MustDocument(map[string]any{"name": "erin"})})
	assert.NoError(t, err)
}
