package scenario

import (
	"github.com/autom8ter/docpipe/model"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/samber/lo"
)

// Score types of a student
const (
	ExamScore     = "exam"
	QuizScore     = "quiz"
	HomeworkScore = "homework"
)

// NewUser returns a fake user in the department
func NewUser(department string) *model.Document {
	return model.MustDocument(map[string]any{
		"firstName":  gofakeit.FirstName(),
		"lastName":   gofakeit.LastName(),
		"email":      gofakeit.Email(),
		"department": department,
	})
}

// NewUsers returns one fake user per department entry
func NewUsers(departments ...string) model.Documents {
	return lo.Map(departments, func(d string, _ int) *model.Document { return NewUser(d) })
}

// NewArticle returns a fake untagged article of the type
func NewArticle(articleType string) *model.Document {
	return model.MustDocument(map[string]any{
		"name":        gofakeit.Sentence(3),
		"description": gofakeit.Sentence(8),
		"type":        articleType,
		"tags":        []any{},
	})
}

// NewArticles returns perType articles of every type, cycling through the types
func NewArticles(perType int, types ...string) model.Documents {
	var docs model.Documents
	for i := 0; i < perType; i++ {
		for _, t := range types {
			docs = append(docs, NewArticle(t))
		}
	}
	return docs
}

// NewStudent returns a student with one score of each type
func NewStudent(id int, exam, quiz, homework float64) *model.Document {
	return model.MustDocument(map[string]any{
		"_id":  id,
		"name": gofakeit.Name(),
		"scores": []any{
			map[string]any{"type": ExamScore, "score": exam},
			map[string]any{"type": QuizScore, "score": quiz},
			map[string]any{"type": HomeworkScore, "score": homework},
		},
	})
}

// NewStudents returns n students with random scores
func NewStudents(n int) model.Documents {
	return lo.Times(n, func(i int) *model.Document {
		return NewStudent(i,
			gofakeit.Float64Range(0, 100),
			gofakeit.Float64Range(0, 100),
			gofakeit.Float64Range(0, 100),
		)
	})
}
