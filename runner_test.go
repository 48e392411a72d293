package docpipe_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/autom8ter/docpipe"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/autom8ter/docpipe/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(o model.Operation) *model.Operation {
	return &o
}

func TestRunner(t *testing.T) {
	ctx := context.Background()
	ws := testutil.Workspace(t)
	out := bytes.NewBuffer(nil)
	runner := docpipe.NewRunner(docpipe.New(ws), out, nil)
	steps := []docpipe.Step{
		{
			Name:      "insert",
			Banner:    "--users--",
			Operation: op(model.InsertMany("users", testutil.NewUserDoc("a"), testutil.NewUserDoc("b"))),
			Report:    `Added {{ .Counts.inserted }} users`,
		},
		{
			Name:      "invalid",
			Operation: op(model.InsertMany("users")),
		},
		{
			Name: "build fails",
			Build: func(ctx context.Context, engine *docpipe.Engine) (model.Operation, error) {
				return model.Operation{}, errors.New(errors.Internal, "no input")
			},
		},
		{
			Name: "built",
			Build: func(ctx context.Context, engine *docpipe.Engine) (model.Operation, error) {
				return model.CountWhere("users", model.All()), nil
			},
			Report: `{{ .Scalar }} users`,
		},
		{
			Name:      "find",
			Operation: op(model.FindAll("users", model.Where(model.Eq("department", "z")))),
			Report:    `{{ len .Rows }} users in z`,
		},
		{
			Name:      "bad template",
			Operation: op(model.CountWhere("users", model.All())),
			Report:    `{{ .Missing.Field }}`,
		},
		{
			Name:      "default report",
			Operation: op(model.UpdateMany("users", model.All(), model.Updates(model.Set("active", true)))),
		},
		{
			Name: "unset",
		},
	}
	results := runner.Run(ctx, steps)
	require.Len(t, results, len(steps))
	for i, r := range results {
		assert.Equal(t, steps[i].Name, r.Name)
	}

	assert.Equal(t, "Added 2 users", results[0].Output)
	assert.NoError(t, results[0].Result.Err)

	assert.True(t, errors.IsValidation(results[1].Result.Err))
	assert.True(t, strings.HasPrefix(results[1].Output, "invalid: error: "))

	assert.Error(t, results[2].Result.Err)
	assert.True(t, strings.HasPrefix(results[2].Output, "build fails: error: "))

	assert.Equal(t, "2 users", results[3].Output)
	assert.Equal(t, "0 users in z", results[4].Output)
	assert.Equal(t, "bad template: 2", results[5].Output)
	assert.Equal(t, "default report: matched=2 modified=2 upserted=0", results[6].Output)
	assert.True(t, errors.IsValidation(results[7].Result.Err))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "--users--", lines[0])
	assert.Equal(t, "Added 2 users", lines[1])
	assert.Len(t, lines, len(steps)+1)
}

func TestRowsSummary(t *testing.T) {
	ctx := context.Background()
	docs := model.Documents{
		model.MustDocument(map[string]any{"name": "a", "score": 1}),
		model.MustDocument(map[string]any{"name": "b", "score": 2}),
	}
	t.Run("next then all", func(t *testing.T) {
		rows := docpipe.NewRows(model.NewSliceCursor(docs))
		require.True(t, rows.Next(ctx))
		assert.Equal(t, "a", rows.Document().GetString("name"))
		all, err := rows.All(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.False(t, rows.Next(ctx))
		again, err := rows.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, all, again)
	})
	t.Run("decode", func(t *testing.T) {
		type row struct {
			Name  string `json:"name"`
			Score int    `json:"score"`
		}
		var out []row
		require.NoError(t, docpipe.NewRows(model.NewSliceCursor(docs)).Decode(ctx, &out))
		assert.Equal(t, []row{{"a", 1}, {"b", 2}}, out)
	})
	t.Run("close", func(t *testing.T) {
		rows := docpipe.NewRows(model.NewSliceCursor(docs))
		require.NoError(t, rows.Close(ctx))
		assert.False(t, rows.Next(ctx))
		assert.Nil(t, rows.Document())
	})
}

func TestCounted(t *testing.T) {
	one, two := int64(1), int64(2)
	c := &docpipe.Counted{Matched: &two, Modified: &one}
	assert.Equal(t, "matched=2 modified=1", c.String())
	assert.Equal(t, map[string]int64{"matched": 2, "modified": 1}, c.Map())
	assert.Equal(t, "", (&docpipe.Counted{}).String())
}

func TestDefaultRowsReport(t *testing.T) {
	ctx := context.Background()
	ws := testutil.Workspace(t)
	engine := docpipe.New(ws)
	require.NoError(t, engine.Execute(ctx, model.InsertMany("students", testutil.NewStudentDoc(1, 20, 85))).Err)
	results := docpipe.NewRunner(engine, bytes.NewBuffer(nil), nil).Run(ctx, []docpipe.Step{{
		Name: "quiz",
		Operation: op(model.AggregateWith("students",
			model.Unwind("scores"),
			model.Match(model.Eq("scores.type", "quiz")),
			model.Project(model.Include("scores")),
		)),
	}})
	require.Len(t, results, 1)
	assert.Equal(t, "quiz: 1 rows\n_id=1 scores.score=85 scores.type=quiz", results[0].Output)
}
