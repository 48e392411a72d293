package util_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/util"
	"github.com/stretchr/testify/assert"
)

func TestUtil(t *testing.T) {
	t.Run("yaml / json conversions", func(t *testing.T) {
		yml, err := util.JSONToYAML([]byte(`{"backend":"badger","params":{"storage_path":"./tmp"}}`))
		assert.Nil(t, err)
		jsonData, err := util.YAMLToJSON(yml)
		assert.Nil(t, err)
		assert.JSONEq(t, `{"backend":"badger","params":{"storage_path":"./tmp"}}`, string(jsonData))
	})
	t.Run("json passthrough", func(t *testing.T) {
		jsonData, err := util.YAMLToJSON([]byte(`{"a":1}`))
		assert.Nil(t, err)
		assert.Equal(t, `{"a":1}`, string(jsonData))
	})
	t.Run("json string", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, util.JSONString(map[string]any{"a": 1}))
	})
	t.Run("decode", func(t *testing.T) {
		type opts struct {
			URI     string        `json:"uri"`
			Timeout time.Duration `json:"timeout"`
			Retries int           `json:"retries"`
		}
		var o opts
		assert.Nil(t, util.Decode(map[string]any{
			"uri":     "mongodb://localhost:27017",
			"timeout": "5s",
			"retries": "3",
		}, &o))
		assert.Equal(t, "mongodb://localhost:27017", o.URI)
		assert.Equal(t, 5*time.Second, o.Timeout)
		assert.Equal(t, 3, o.Retries)
	})
	t.Run("validate", func(t *testing.T) {
		type usr struct {
			Name string `json:"name" validate:"required"`
		}
		var u = usr{}
		err := util.ValidateStruct(&u)
		assert.NotNil(t, err)
		assert.True(t, errors.IsValidation(err))
		assert.Equal(t, "name", errors.Extract(err).Field)
		u.Name = "a name"
		assert.Nil(t, util.ValidateStruct(&u))
	})
	t.Run("encode uint64", func(t *testing.T) {
		val1 := util.EncodeUint64(9)
		val2 := util.EncodeUint64(10)
		assert.Equal(t, -1, bytes.Compare(val1, val2))
		assert.Equal(t, uint64(10), util.DecodeUint64(val2))
		assert.Equal(t, uint64(0), util.DecodeUint64(nil))
	})
}
