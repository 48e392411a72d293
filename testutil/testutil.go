package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/autom8ter/docpipe"
	_ "github.com/autom8ter/docpipe/backend/badger"
	"github.com/autom8ter/docpipe/model"
	"github.com/autom8ter/docpipe/scenario"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

// Workspace opens an in-memory embedded workspace that is closed when the test ends
func Workspace(t *testing.T) *docpipe.Workspace {
	t.Helper()
	ws, err := docpipe.Open(context.Background(), docpipe.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, ws.Close(context.Background()))
	})
	return ws
}

// TestWorkspace opens an embedded workspace stored in a temporary directory, recreates the
// collections and calls fn with it
func TestWorkspace(fn func(ctx context.Context, ws *docpipe.Workspace), collections ...string) error {
	dir, err := os.MkdirTemp("", "docpipe")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := docpipe.DefaultConfig()
	cfg.Params["storage_path"] = dir
	ws, err := docpipe.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer ws.Close(ctx)
	if err := ws.Recreate(ctx, collections...); err != nil {
		return err
	}
	fn(ctx, ws)
	return nil
}

// NewUserDoc returns a fake user in the department
func NewUserDoc(department string) *model.Document {
	return scenario.NewUser(department)
}

// NewStudentDoc returns a student with the given homework and quiz scores and a random exam score
func NewStudentDoc(id int, homework, quiz float64) *model.Document {
	return scenario.NewStudent(id, gofakeit.Float64Range(0, 100), quiz, homework)
}
