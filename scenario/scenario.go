// Package scenario is the fixed users, articles and students walkthrough of the engine
package scenario

import (
	"context"
	_ "embed"
	"io"

	"github.com/autom8ter/docpipe"
	"github.com/autom8ter/docpipe/errors"
	"github.com/autom8ter/docpipe/model"
	"github.com/brianvoe/gofakeit/v6"
)

// Collection names
const (
	Users    = "users"
	Articles = "articles"
	Students = "students"
)

// StudentFixtures is the number of students seeded when seeding is configured
const StudentFixtures = 20

var (
	//go:embed schemas/users.json
	userSchema []byte
	//go:embed schemas/articles.json
	articleSchema []byte
)

// Scenario builds and runs the steps
type Scenario struct {
	cfg docpipe.ScenarioConfig
}

// New returns a scenario parameterized by cfg
func New(cfg docpipe.ScenarioConfig) *Scenario {
	return &Scenario{cfg: cfg}
}

// Options registers the scenario's document schemas on an engine
func (s *Scenario) Options() []docpipe.Option {
	return []docpipe.Option{
		docpipe.WithSchema(Users, docpipe.MustJSONSchema(userSchema)),
		docpipe.WithSchema(Articles, docpipe.MustJSONSchema(articleSchema)),
	}
}

// Prepare recreates the users and articles collections. The students collection is expected to
// exist already unless seeding is configured, in which case it is recreated and seeded.
func (s *Scenario) Prepare(ctx context.Context, ws *docpipe.Workspace) error {
	if err := ws.Recreate(ctx, Users, Articles); err != nil {
		return err
	}
	if !s.cfg.SeedStudents {
		return nil
	}
	if err := ws.Recreate(ctx, Students); err != nil {
		return err
	}
	if _, err := ws.Collection(Students).InsertMany(ctx, NewStudents(StudentFixtures)); err != nil {
		return errors.Wrap(err, errors.Backend, "failed to seed students")
	}
	return nil
}

// Run prepares the workspace and runs every step, writing report lines to out
func Run(ctx context.Context, ws *docpipe.Workspace, cfg docpipe.ScenarioConfig, out io.Writer, logger docpipe.Logger) ([]docpipe.StepResult, error) {
	s := New(cfg)
	if err := s.Prepare(ctx, ws); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = docpipe.NopLogger()
	}
	opts := append(s.Options(), docpipe.WithLogger(logger))
	engine := docpipe.New(ws, opts...)
	return docpipe.NewRunner(engine, out, logger).Run(ctx, s.Steps()), nil
}

// Steps returns the steps in the order they run
func (s *Scenario) Steps() []docpipe.Step {
	return append(append(s.UserSteps(), s.ArticleSteps()...), s.StudentSteps()...)
}

func op(o model.Operation) *model.Operation {
	return &o
}

// UserSteps inserts users, deletes one, renames department b and lists department c
func (s *Scenario) UserSteps() []docpipe.Step {
	return []docpipe.Step{
		{
			Name:      "users.insert",
			Operation: op(model.InsertMany(Users, NewUsers("a", "a", "b", "b", "c", "c")...)),
			Report:    `Added {{ .Counts.inserted }} users`,
		},
		{
			Name:      "users.delete",
			Operation: op(model.DeleteFirst(Users, model.Where(model.Eq("department", "a")))),
			Report:    `Removed {{ .Counts.deleted }} user`,
		},
		{
			Name:   "users.rename",
			Build:  renameDepartment("b"),
			Report: `Updated {{ .Counts.modified }} users`,
		},
		{
			Name:      "users.find",
			Operation: op(model.FindAll(Users, model.Where(model.Eq("department", "c")), model.Exclude(model.IDField))),
			Report:    "Users:{{ range .Rows }}\n{{ .String }}{{ end }}",
		},
	}
}

// renameDepartment reads the department's users and sets a random first name on each by _id
func renameDepartment(department string) docpipe.BuildFunc {
	return func(ctx context.Context, engine *docpipe.Engine) (model.Operation, error) {
		result := engine.Execute(ctx, model.FindAll(Users, model.Where(model.Eq("department", department))))
		if result.Err != nil {
			return model.Operation{}, result.Err
		}
		rows, _ := result.Rows()
		users, err := rows.All(ctx)
		if err != nil {
			return model.Operation{}, err
		}
		writes := make([]model.WriteOp, 0, len(users))
		for _, user := range users {
			writes = append(writes, model.UpdateOneWrite(
				model.Where(model.Eq(model.IDField, user.Get(model.IDField))),
				model.Updates(model.Set("firstName", gofakeit.FirstName())),
			))
		}
		return model.Bulk(Users, writes...), nil
	}
}

// ArticleSteps inserts articles, tags them by type, counts and pulls tags
func (s *Scenario) ArticleSteps() []docpipe.Step {
	pulled := []any{"tag2", "tag1-a"}
	return []docpipe.Step{
		{
			Name:      "articles.insert",
			Banner:    "---------------Articles-------------------",
			Operation: op(model.InsertMany(Articles, NewArticles(5, "a", "b", "c")...)),
			Report:    `Added {{ .Counts.inserted }} articles`,
		},
		{
			Name: "articles.tag",
			Operation: op(model.UpdateMany(Articles,
				model.Where(model.Eq("type", "a")),
				model.Updates(model.Set("tags", []any{"tag1-a", "tag2-a", "tag3"})),
			)),
			Report: `Modified {{ .Counts.modified }} articles`,
		},
		{
			Name: "articles.tagOthers",
			Operation: op(model.UpdateMany(Articles,
				model.Where(model.Ne("type", "a")),
				model.Updates(model.Set("tags", []any{"tag2", "tag3", "super"})),
			)),
			Report: `Modified {{ .Counts.modified }} articles`,
		},
		{
			Name:      "articles.count",
			Operation: op(model.CountWhere(Articles, model.Where(model.In("tags", pulled...)))),
			Report:    `Found {{ .Scalar }} articles`,
		},
		{
			Name: "articles.pull",
			Operation: op(model.UpdateMany(Articles,
				model.All(),
				model.Updates(model.PullWhere("tags", model.OpIn, pulled)),
			)),
			Report: `Pulled {{ .Counts.modified }} articles`,
		},
	}
}

// StudentSteps reports the worst homework scores, the homework average and the students with a
// high quiz score
func (s *Scenario) StudentSteps() []docpipe.Step {
	return []docpipe.Step{
		{
			Name:      "students.worst",
			Banner:    "---------------Students-------------------",
			Operation: op(WorstHomework(s.cfg.WorstScore)),
			Report:    "{{ len .Rows }} homework scores below threshold{{ range .Rows }}\n{{ .String }}{{ end }}",
		},
		{
			Name:      "students.average",
			Banner:    "------------------------------------------",
			Operation: op(AverageHomework()),
			Report:    `{{ with .Document }}Average score {{ .GetFloat "avg" | printf "%.2f" }}{{ else }}Average score unavailable: no homework scores{{ end }}`,
		},
		{
			Name:      "students.quiz",
			Operation: op(MarkQuiz(s.cfg.QuizScore)),
			Report:    `Marked {{ len .Rows }} quiz scores with points_80`,
		},
	}
}

// WorstHomework finds homework scores below threshold, best first
func WorstHomework(threshold float64) model.Operation {
	return model.AggregateWith(Students,
		model.Unwind("scores"),
		model.Match(
			model.Eq("scores.type", HomeworkScore),
			model.Lt("scores.score", threshold),
		),
		model.Sort("scores.score", model.DESC),
	)
}

// AverageHomework averages every homework score into avg
func AverageHomework() model.Operation {
	return model.AggregateWith(Students,
		model.Unwind("scores"),
		model.Match(model.Eq("scores.type", HomeworkScore)),
		model.Group("", model.Avg("avg", "scores.score")),
	)
}

// MarkQuiz marks quiz scores at or above threshold with points_80
func MarkQuiz(threshold float64) model.Operation {
	return model.AggregateWith(Students,
		model.Unwind("scores"),
		model.Match(
			model.Eq("scores.type", QuizScore),
			model.Gte("scores.score", threshold),
		),
		model.AddFields(model.Assign("points_80", true)),
	)
}
