package docpipe

import (
	"github.com/autom8ter/docpipe/backend"
	"github.com/autom8ter/docpipe/model"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
)

// FilterBSON translates a filter into the backend's native form. Conditions on the same field
// share one operator document unless an operator repeats, in which case every condition becomes
// its own clause of an $and.
func FilterBSON(filter model.Filter) bson.D {
	if filter == nil {
		return nil
	}
	repeats := len(lo.UniqBy(filter, func(c model.Condition) string { return c.Field + "\x00" + string(c.Op) })) != len(filter)
	if repeats {
		clauses := lo.Map(filter, func(c model.Condition, _ int) bson.D {
			return bson.D{{Key: c.Field, Value: bson.D{{Key: string(c.Op), Value: nativeValue(c.Value)}}}}
		})
		return bson.D{{Key: "$and", Value: clauses}}
	}
	out := bson.D{}
	index := map[string]int{}
	for _, c := range filter {
		op := bson.E{Key: string(c.Op), Value: nativeValue(c.Value)}
		i, ok := index[c.Field]
		if !ok {
			index[c.Field] = len(out)
			out = append(out, bson.E{Key: c.Field, Value: bson.D{op}})
			continue
		}
		out[i].Value = append(out[i].Value.(bson.D), op)
	}
	return out
}

// UpdateBSON translates an update into operator documents, one per distinct operator in the
// order the operators first appear
func UpdateBSON(update model.Update) bson.D {
	out := bson.D{}
	index := map[model.UpdateOp]int{}
	for _, d := range update {
		field := bson.E{Key: d.Field, Value: directiveValue(d)}
		i, ok := index[d.Op]
		if !ok {
			index[d.Op] = len(out)
			out = append(out, bson.E{Key: string(d.Op), Value: bson.D{field}})
			continue
		}
		out[i].Value = append(out[i].Value.(bson.D), field)
	}
	return out
}

func directiveValue(d model.Directive) any {
	if cond, ok := d.Value.(model.ElementCondition); ok {
		return bson.D{{Key: string(cond.Op), Value: nativeValue(cond.Value)}}
	}
	if d.Op == model.UnsetOp {
		return ""
	}
	return nativeValue(d.Value)
}

// ProjectionBSON translates a projection into {field: 1|0} form
func ProjectionBSON(projection model.Projection) bson.D {
	if len(projection) == 0 {
		return nil
	}
	return lo.Map(projection, func(f model.ProjectField, _ int) bson.E {
		return bson.E{Key: f.Field, Value: lo.Ternary(f.Include, 1, 0)}
	})
}

// PipelineBSON translates the stages in their given order
func PipelineBSON(pipeline model.Pipeline) []bson.D {
	return lo.Map(pipeline, func(s model.Stage, _ int) bson.D { return StageBSON(s) })
}

// StageBSON translates a single stage
func StageBSON(stage model.Stage) bson.D {
	switch stage.Kind {
	case model.UnwindStage:
		if stage.PreserveEmpty {
			return bson.D{{Key: "$unwind", Value: bson.D{
				{Key: "path", Value: fieldRef(stage.Field)},
				{Key: "preserveNullAndEmptyArrays", Value: true},
			}}}
		}
		return bson.D{{Key: "$unwind", Value: fieldRef(stage.Field)}}
	case model.MatchStage:
		return bson.D{{Key: "$match", Value: FilterBSON(stage.Filter)}}
	case model.SortStage:
		return bson.D{{Key: "$sort", Value: bson.D(lo.Map(stage.OrderBy, func(o model.OrderBy, _ int) bson.E {
			return bson.E{Key: o.Field, Value: int(o.Direction)}
		}))}}
	case model.GroupStage:
		var key any
		if stage.GroupKey != "" {
			key = fieldRef(stage.GroupKey)
		}
		group := bson.D{{Key: model.IDField, Value: key}}
		for _, acc := range stage.Accumulators {
			group = append(group, bson.E{Key: acc.As, Value: accumulatorBSON(acc)})
		}
		return bson.D{{Key: "$group", Value: group}}
	case model.AddFieldsStage:
		return bson.D{{Key: "$addFields", Value: bson.D(lo.Map(stage.Fields, func(a model.Assignment, _ int) bson.E {
			return bson.E{Key: a.Field, Value: expressionValue(a.Value)}
		}))}}
	case model.ProjectStage:
		return bson.D{{Key: "$project", Value: ProjectionBSON(stage.Projection)}}
	case model.LimitStage:
		return bson.D{{Key: "$limit", Value: stage.N}}
	case model.SkipStage:
		return bson.D{{Key: "$skip", Value: stage.N}}
	case model.CountStage:
		return bson.D{{Key: "$count", Value: stage.Field}}
	}
	return bson.D{{Key: "$" + string(stage.Kind), Value: bson.D{}}}
}

func accumulatorBSON(acc model.Accumulator) bson.D {
	if acc.Function == model.AccCount {
		return bson.D{{Key: string(model.AccSum), Value: 1}}
	}
	return bson.D{{Key: string(acc.Function), Value: fieldRef(acc.Field)}}
}

// expressionValue translates an assignment value. Field references become '$' paths and
// literals are wrapped so they are never evaluated as expressions.
func expressionValue(value any) any {
	if ref, ok := value.(model.FieldRef); ok {
		return fieldRef(string(ref))
	}
	return bson.D{{Key: "$literal", Value: nativeValue(value)}}
}

func fieldRef(path string) string {
	return "$" + path
}

// nativeValue converts documents into plain maps the bson encoder understands
func nativeValue(value any) any {
	switch v := value.(type) {
	case *model.Document:
		if v == nil {
			return nil
		}
		return v.Value()
	case model.Documents:
		return lo.Map(v, func(d *model.Document, _ int) any { return nativeValue(d) })
	case []any:
		return lo.Map(v, func(item any, _ int) any { return nativeValue(item) })
	}
	return value
}

// writeModels translates bulk writes into backend write models
func writeModels(writes []model.WriteOp) []backend.WriteModel {
	return lo.Map(writes, func(w model.WriteOp, _ int) backend.WriteModel {
		switch w.Kind {
		case model.InsertOne:
			return backend.WriteModel{InsertOne: &backend.InsertOneModel{Document: w.Document}}
		case model.UpdateOne:
			return backend.WriteModel{UpdateOne: &backend.UpdateOneModel{
				Filter: FilterBSON(w.Filter),
				Update: UpdateBSON(w.Update),
			}}
		}
		return backend.WriteModel{DeleteOne: &backend.DeleteOneModel{Filter: FilterBSON(w.Filter)}}
	})
}
