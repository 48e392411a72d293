package model_test

import (
	"context"
	"testing"

	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/stretchr/testify/assert"
)

func assertInvalid(t *testing.T, op model.Operation, field string) {
	t.Helper()
	err := op.Validate()
	if assert.NotNil(t, err) {
		assert.True(t, errors.IsValidation(err), err.Error())
		assert.Equal(t, field, errors.Extract(err).Field)
	}
}

func TestOperation(t *testing.T) {
	user := model.MustDocument(map[string]any{"department": "a"})
	t.Run("validate empty operation", func(t *testing.T) {
		assertInvalid(t, model.Operation{}, "kind")
	})
	t.Run("validate no collection", func(t *testing.T) {
		assertInvalid(t, model.Operation{Kind: model.KindFind, Filter: model.All()}, "collection")
	})
	t.Run("validate unknown kind", func(t *testing.T) {
		assertInvalid(t, model.Operation{Kind: "upsert", Collection: "users"}, "kind")
	})
	t.Run("validate insert", func(t *testing.T) {
		assert.Nil(t, model.InsertMany("users", user).Validate())
		assertInvalid(t, model.InsertMany("users"), "documents")
		assertInvalid(t, model.InsertMany("users", nil), "documents[0]")
	})
	t.Run("filter required for update delete find and count", func(t *testing.T) {
		assertInvalid(t, model.UpdateMany("articles", nil, model.Updates(model.Set("tags", []string{"a"}))), "filter")
		assertInvalid(t, model.DeleteFirst("users", nil), "filter")
		assertInvalid(t, model.FindAll("users", nil), "filter")
		assertInvalid(t, model.CountWhere("users", nil), "filter")
	})
	t.Run("empty filter matches all", func(t *testing.T) {
		op := model.UpdateMany("articles", model.All(), model.Updates(model.PullWhere("tags", model.OpIn, []string{"tag2", "tag1-a"})))
		assert.Nil(t, op.Validate())
	})
	t.Run("update only for update", func(t *testing.T) {
		op := model.FindAll("users", model.All())
		op.Update = model.Updates(model.Set("a", 1))
		assertInvalid(t, op, "update")
	})
	t.Run("pipeline only for aggregate", func(t *testing.T) {
		op := model.FindAll("users", model.All())
		op.Pipeline = model.Pipeline{model.Unwind("scores")}
		assertInvalid(t, op, "pipeline")
	})
	t.Run("filter not allowed for aggregate", func(t *testing.T) {
		op := model.AggregateWith("students", model.Unwind("scores"))
		op.Filter = model.All()
		assertInvalid(t, op, "filter")
	})
	t.Run("projection cannot mix", func(t *testing.T) {
		assert.Nil(t, model.FindAll("users", model.All(), model.Exclude("_id")).Validate())
		assert.Nil(t, model.FindAll("users", model.All(), model.Exclude("_id"), model.Include("firstName")).Validate())
		assertInvalid(t, model.FindAll("users", model.All(), model.Exclude("email"), model.Include("firstName")), "projection")
	})
	t.Run("condition operators", func(t *testing.T) {
		assertInvalid(t, model.FindAll("users", model.Where(model.Condition{Field: "a", Op: "$regex", Value: "x"})), "filter[0].op")
		assertInvalid(t, model.FindAll("users", model.Where(model.Condition{Field: "a", Op: model.OpIn, Value: "x"})), "filter[0].value")
		assertInvalid(t, model.FindAll("users", model.Where(model.Eq("", 1))), "filter[0].field")
		assertInvalid(t, model.FindAll("users", model.Where(model.Eq("$where", 1))), "filter[0].field")
		assertInvalid(t, model.FindAll("users", model.Where(model.Condition{Field: "a", Op: model.OpExists, Value: 1})), "filter[0].value")
	})
	t.Run("update directives", func(t *testing.T) {
		assertInvalid(t, model.UpdateMany("a", model.All(), model.Update{}), "update")
		assertInvalid(t, model.UpdateMany("a", model.All(), model.Updates(model.Directive{Op: "$rename", Field: "a"})), "update[0].op")
		assertInvalid(t, model.UpdateMany("a", model.All(), model.Updates(model.Inc("n", "one"))), "update[0].value")
		assertInvalid(t, model.UpdateMany("a", model.All(), model.Updates(model.Set("_id", "x"))), "update[0].field")
		assertInvalid(t, model.UpdateMany("a", model.All(), model.Updates(model.Set("x", 1), model.Unset("x"))), "update[1].field")
		assertInvalid(t, model.UpdateMany("a", model.All(), model.Updates(model.PullWhere("tags", model.OpIn, "x"))), "update[0].value.value")
	})
	t.Run("pipeline stages", func(t *testing.T) {
		good := model.AggregateWith("students",
			model.Unwind("scores"),
			model.Match(model.Eq("scores.type", "homework"), model.Lt("scores.score", 30)),
			model.Sort("scores.score", model.DESC),
			model.Group("", model.Avg("avg", "scores.score")),
		)
		assert.Nil(t, good.Validate())
		assertInvalid(t, model.AggregateWith("students"), "pipeline")
		assertInvalid(t, model.AggregateWith("students", model.Unwind("")), "pipeline[0].field")
		assertInvalid(t, model.AggregateWith("students", model.Stage{Kind: "lookup"}), "pipeline[0].kind")
		assertInvalid(t, model.AggregateWith("students", model.Stage{Kind: model.MatchStage}), "pipeline[0].filter")
		assertInvalid(t, model.AggregateWith("students", model.Sort("score", 2)), "pipeline[0].orderBy[0].direction")
		assertInvalid(t, model.AggregateWith("students", model.Group("", model.Accumulator{As: "x", Function: "$median", Field: "a"})), "pipeline[0].accumulators[0].function")
		assertInvalid(t, model.AggregateWith("students", model.Group("", model.Avg("x", "a"), model.Sum("x", "b"))), "pipeline[0].accumulators[1].as")
		assertInvalid(t, model.AggregateWith("students", model.AddFields()), "pipeline[0].fields")
		assertInvalid(t, model.AggregateWith("students", model.Limit(0)), "pipeline[0].n")
		assert.Nil(t, model.AggregateWith("students", model.Group("type", model.Counter("n"))).Validate())
	})
	t.Run("bulk writes", func(t *testing.T) {
		good := model.Bulk("users",
			model.WriteOp{Kind: model.UpdateOne, Filter: model.Where(model.Eq("_id", "1")), Update: model.Updates(model.Set("firstName", "ann"))},
			model.WriteOp{Kind: model.DeleteOne, Filter: model.Where(model.Eq("_id", "2"))},
			model.WriteOp{Kind: model.InsertOne, Document: user},
		)
		assert.Nil(t, good.Validate())
		assertInvalid(t, model.Bulk("users"), "writes")
		assertInvalid(t, model.Bulk("users", model.WriteOp{Kind: "replaceOne"}), "writes[0].kind")
		assertInvalid(t, model.Bulk("users", model.WriteOp{Kind: model.UpdateOne, Update: model.Updates(model.Set("a", 1))}), "writes[0].filter")
		assertInvalid(t, model.Bulk("users", model.WriteOp{Kind: model.InsertOne}), "writes[0].document")
	})
	t.Run("scalar pipelines", func(t *testing.T) {
		assert.True(t, model.Pipeline{model.Unwind("s"), model.Group("", model.Avg("avg", "s"))}.Scalar())
		assert.True(t, model.Pipeline{model.Count("n")}.Scalar())
		assert.False(t, model.Pipeline{model.Group("type", model.Avg("avg", "s"))}.Scalar())
		assert.False(t, model.Pipeline{model.Group("", model.Avg("avg", "s")), model.Sort("avg", model.ASC)}.Scalar())
	})
}

func TestSliceCursor(t *testing.T) {
	ctx := context.Background()
	docs := model.Documents{model.NewDocument(), model.NewDocument()}
	cursor := model.NewSliceCursor(docs)
	assert.Nil(t, cursor.Document())
	results, err := model.Drain(ctx, cursor)
	assert.Nil(t, err)
	assert.Len(t, results, 2)
	assert.False(t, cursor.Next(ctx))
}
