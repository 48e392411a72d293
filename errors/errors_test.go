package errors_test

import (
	"fmt"
	"testing"

	"github.com/autom8ter/docpipe/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("wrap nil error", func(t *testing.T) {
		var err error
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Nil(t, err)
	})
	t.Run("wrap error", func(t *testing.T) {
		var err = fmt.Errorf("connection reset")
		err = errors.Wrap(err, errors.Backend, "")
		assert.Equal(t, errors.Backend, errors.Extract(err).Code)
		assert.True(t, errors.IsBackend(err))
		assert.False(t, errors.IsValidation(err))
	})
	t.Run("new error", func(t *testing.T) {
		err := errors.New(errors.NotFound, "not found")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("new error then wrap", func(t *testing.T) {
		err := errors.New(0, "not found")
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("validation error carries field", func(t *testing.T) {
		err := errors.Validationf("filter", "required for %s", "update")
		assert.True(t, errors.IsValidation(err))
		assert.Equal(t, "filter", errors.Extract(err).Field)
		assert.Equal(t, []string{"required for update"}, errors.Extract(err).Messages)
	})
	t.Run("extract foreign error", func(t *testing.T) {
		cause := fmt.Errorf("boom")
		e := errors.Extract(cause)
		assert.Equal(t, errors.Code(0), e.Code)
		assert.Equal(t, cause, e.Err)
		assert.False(t, errors.IsConnection(cause))
	})
	t.Run("unwrap", func(t *testing.T) {
		cause := fmt.Errorf("dial tcp: refused")
		err := errors.Wrap(cause, errors.Connection, "failed to connect")
		assert.ErrorIs(t, err, cause)
		assert.True(t, errors.IsConnection(err))
	})
	t.Run("new error then wrap then remove", func(t *testing.T) {
		err := errors.New(0, "not found")
		err = errors.Wrap(err, errors.NotFound, "")
		e := errors.Extract(err).RemoveError()
		assert.Empty(t, e.Err)
	})
	t.Run("error json string", func(t *testing.T) {
		err := errors.New(0, "not found")
		err = errors.Wrap(err, errors.NotFound, "")
		e := errors.Extract(err).RemoveError()
		assert.JSONEq(t, `{ "code":404, "messages": ["not found"]}`, e.Error())
	})
	t.Run("error json string with cause", func(t *testing.T) {
		err := errors.Wrap(fmt.Errorf("timeout"), errors.Backend, "find failed")
		assert.JSONEq(t, `{"code":502, "messages":["find failed"], "err":"timeout"}`, err.Error())
	})
}
