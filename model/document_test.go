package model_test

import (
	"testing"

	"github.com/autom8ter/docpipe/model"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
)

func TestDocument(t *testing.T) {
	type contact struct {
		Email string `json:"email"`
		Phone string `json:"phone,omitempty"`
	}
	type user struct {
		ID      string  `json:"_id"`
		Contact contact `json:"contact"`
		Name    string  `json:"name"`
	}
	const email = "john.smith@yahoo.com"
	usr := user{ID: gofakeit.UUID(), Contact: contact{Email: email, Phone: gofakeit.Phone()}, Name: "john smith"}
	r, err := model.NewDocumentFrom(&usr)
	if err != nil {
		t.Fatal(err)
	}
	t.Run("get id", func(t *testing.T) {
		assert.Equal(t, usr.ID, r.ID())
	})
	t.Run("get email", func(t *testing.T) {
		assert.Equal(t, usr.Contact.Email, r.Get("contact.email"))
	})
	t.Run("get phone", func(t *testing.T) {
		assert.Equal(t, usr.Contact.Phone, r.Get("contact.phone"))
	})
	t.Run("extended json object id", func(t *testing.T) {
		doc := model.MustDocument(map[string]any{"_id": map[string]any{"$oid": "5f1b0c0e8f1b2c3d4e5f6a7b"}})
		assert.Equal(t, "5f1b0c0e8f1b2c3d4e5f6a7b", doc.ID())
	})
	t.Run("flatten", func(t *testing.T) {
		flat, err := r.Flatten()
		assert.Nil(t, err)
		assert.Equal(t, usr.Name, flat["name"])
		assert.Contains(t, flat, "contact.email")
	})
	t.Run("keys", func(t *testing.T) {
		doc, err := model.NewDocumentFromBytes([]byte(`{"b":1,"a":2}`))
		assert.Nil(t, err)
		assert.Equal(t, []string{"b", "a"}, doc.Keys())
	})
	t.Run("invalid json", func(t *testing.T) {
		_, err := model.NewDocumentFromBytes([]byte(`[1,2]`))
		assert.NotNil(t, err)
		_, err = model.NewDocumentFromBytes([]byte(`{`))
		assert.NotNil(t, err)
	})
	t.Run("flatten nested arrays", func(t *testing.T) {
		doc := model.MustDocument(map[string]any{"scores": []any{map[string]any{"type": "quiz", "score": 80}}})
		flat, err := doc.Flatten()
		assert.Nil(t, err)
		assert.Equal(t, map[string]any{"scores.0.type": "quiz", "scores.0.score": float64(80)}, flat)
	})
}
