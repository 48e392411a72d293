package model

import (
	"github.com/autom8ter/docpipe/errors"
	"github.com/samber/lo"
)

// StageKind identifies the variant of a pipeline stage
type StageKind string

const (
	UnwindStage    StageKind = "unwind"
	MatchStage     StageKind = "match"
	SortStage      StageKind = "sort"
	GroupStage     StageKind = "group"
	AddFieldsStage StageKind = "addFields"
	ProjectStage   StageKind = "project"
	LimitStage     StageKind = "limit"
	SkipStage      StageKind = "skip"
	CountStage     StageKind = "count"
)

// OrderByDirection indicates whether results should be sorted in ascending or descending order
type OrderByDirection int

const (
	// ASC indicates ascending order
	ASC OrderByDirection = 1
	// DESC indicates descending order
	DESC OrderByDirection = -1
)

// OrderBy orders documents by a field in a direction
type OrderBy struct {
	Field     string           `json:"field"`
	Direction OrderByDirection `json:"direction"`
}

// AccumulatorFunc is an aggregate function applied to each group
type AccumulatorFunc string

const (
	AccAvg   AccumulatorFunc = "$avg"
	AccSum   AccumulatorFunc = "$sum"
	AccMin   AccumulatorFunc = "$min"
	AccMax   AccumulatorFunc = "$max"
	AccFirst AccumulatorFunc = "$first"
	AccLast  AccumulatorFunc = "$last"
	AccPush  AccumulatorFunc = "$push"
	// AccCount counts the documents in the group and takes no field
	AccCount AccumulatorFunc = "$count"
)

var accumulatorFuncs = []AccumulatorFunc{AccAvg, AccSum, AccMin, AccMax, AccFirst, AccLast, AccPush, AccCount}

// Accumulator computes the output field As from Field over each group
type Accumulator struct {
	As       string          `json:"as"`
	Function AccumulatorFunc `json:"function"`
	Field    string          `json:"field,omitempty"`
}

// Avg averages field into as
func Avg(as, field string) Accumulator { return Accumulator{As: as, Function: AccAvg, Field: field} }

// Sum sums field into as
func Sum(as, field string) Accumulator { return Accumulator{As: as, Function: AccSum, Field: field} }

// Min takes the minimum of field into as
func Min(as, field string) Accumulator { return Accumulator{As: as, Function: AccMin, Field: field} }

// Max takes the maximum of field into as
func Max(as, field string) Accumulator { return Accumulator{As: as, Function: AccMax, Field: field} }

// First takes the first value of field into as
func First(as, field string) Accumulator {
	return Accumulator{As: as, Function: AccFirst, Field: field}
}

// Last takes the last value of field into as
func Last(as, field string) Accumulator { return Accumulator{As: as, Function: AccLast, Field: field} }

// PushAll collects every value of field into the array as
func PushAll(as, field string) Accumulator {
	return Accumulator{As: as, Function: AccPush, Field: field}
}

// Counter counts the documents of each group into as
func Counter(as string) Accumulator { return Accumulator{As: as, Function: AccCount} }

// FieldRef references the value of a document field inside an expression
type FieldRef string

// Ref returns a reference to the field at path
func Ref(path string) FieldRef {
	return FieldRef(path)
}

// Assignment sets Field to Value, which is a literal or a FieldRef
type Assignment struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Assign returns an assignment of value to field
func Assign(field string, value any) Assignment {
	return Assignment{Field: field, Value: value}
}

// ProjectField includes or excludes a field from output documents
type ProjectField struct {
	Field   string `json:"field"`
	Include bool   `json:"include"`
}

// Include includes the field
func Include(field string) ProjectField { return ProjectField{Field: field, Include: true} }

// Exclude excludes the field
func Exclude(field string) ProjectField { return ProjectField{Field: field, Include: false} }

// Projection is an ordered field-inclusion set
type Projection []ProjectField

// Validate validates the projection. Inclusion and exclusion may only be mixed for the identifier.
func (p Projection) Validate(path string) error {
	var include, exclude bool
	for i, f := range p {
		if err := validateField(indexPath(path, i)+".field", f.Field); err != nil {
			return err
		}
		if f.Field == IDField {
			continue
		}
		if f.Include {
			include = true
		} else {
			exclude = true
		}
	}
	if include && exclude {
		return errors.Validationf(path, "cannot mix inclusion and exclusion")
	}
	return nil
}

// Stage is a single step of an aggregation pipeline. Kind selects which fields are used.
type Stage struct {
	Kind StageKind `json:"kind"`
	// Field is the array field for UnwindStage and the output field for CountStage
	Field string `json:"field,omitempty"`
	// PreserveEmpty keeps documents whose unwound field is missing or empty
	PreserveEmpty bool `json:"preserveEmpty,omitempty"`
	// Filter is the predicate for MatchStage
	Filter Filter `json:"filter,omitempty"`
	// OrderBy is the sort order for SortStage
	OrderBy []OrderBy `json:"orderBy,omitempty"`
	// GroupKey is the field grouped on. An empty key groups every document into one bucket.
	GroupKey     string        `json:"groupKey,omitempty"`
	Accumulators []Accumulator `json:"accumulators,omitempty"`
	// Fields are the assignments for AddFieldsStage
	Fields []Assignment `json:"fields,omitempty"`
	// Projection is the projection for ProjectStage
	Projection Projection `json:"projection,omitempty"`
	// N is the count for LimitStage and SkipStage
	N int64 `json:"n,omitempty"`
}

// Unwind emits one document per element of the array field
func Unwind(field string) Stage { return Stage{Kind: UnwindStage, Field: field} }

// UnwindPreserve is Unwind that keeps documents whose array is missing or empty
func UnwindPreserve(field string) Stage {
	return Stage{Kind: UnwindStage, Field: field, PreserveEmpty: true}
}

// Match keeps documents matching every condition
func Match(conditions ...Condition) Stage {
	return Stage{Kind: MatchStage, Filter: Where(conditions...)}
}

// Sort orders documents by field in direction
func Sort(field string, direction OrderByDirection) Stage {
	return Stage{Kind: SortStage, OrderBy: []OrderBy{{Field: field, Direction: direction}}}
}

// SortBy orders documents by each key in turn
func SortBy(keys ...OrderBy) Stage {
	return Stage{Kind: SortStage, OrderBy: keys}
}

// Group buckets documents by key and computes accumulators per bucket. An empty key
// produces a single bucket with a null identifier.
func Group(key string, accumulators ...Accumulator) Stage {
	return Stage{Kind: GroupStage, GroupKey: key, Accumulators: accumulators}
}

// AddFields sets fields on every document
func AddFields(assignments ...Assignment) Stage {
	return Stage{Kind: AddFieldsStage, Fields: assignments}
}

// Project reshapes documents with the projection
func Project(fields ...ProjectField) Stage {
	return Stage{Kind: ProjectStage, Projection: fields}
}

// Limit passes the first n documents
func Limit(n int64) Stage { return Stage{Kind: LimitStage, N: n} }

// Skip drops the first n documents
func Skip(n int64) Stage { return Stage{Kind: SkipStage, N: n} }

// Count replaces the stream with a single document holding the document count in field
func Count(field string) Stage { return Stage{Kind: CountStage, Field: field} }

// Validate validates the stage. path is the descriptor path reported on failure.
func (s Stage) Validate(path string) error {
	switch s.Kind {
	case UnwindStage:
		return validateField(path+".field", s.Field)
	case MatchStage:
		if s.Filter == nil {
			return errors.Validationf(path+".filter", "required for %s", s.Kind)
		}
		return s.Filter.Validate(path + ".filter")
	case SortStage:
		if len(s.OrderBy) == 0 {
			return errors.Validationf(path+".orderBy", "at least one sort key is required")
		}
		for i, o := range s.OrderBy {
			p := indexPath(path+".orderBy", i)
			if err := validateField(p+".field", o.Field); err != nil {
				return err
			}
			if o.Direction != ASC && o.Direction != DESC {
				return errors.Validationf(p+".direction", "must be 1 or -1")
			}
		}
		return nil
	case GroupStage:
		if s.GroupKey != "" {
			if err := validateField(path+".groupKey", s.GroupKey); err != nil {
				return err
			}
		}
		seen := map[string]bool{}
		for i, a := range s.Accumulators {
			p := indexPath(path+".accumulators", i)
			if !lo.Contains(accumulatorFuncs, a.Function) {
				return errors.Validationf(p+".function", "unsupported accumulator '%s'", a.Function)
			}
			if err := validateField(p+".as", a.As); err != nil {
				return err
			}
			if a.As == IDField || seen[a.As] {
				return errors.Validationf(p+".as", "duplicate output field '%s'", a.As)
			}
			seen[a.As] = true
			if a.Function != AccCount {
				if err := validateField(p+".field", a.Field); err != nil {
					return err
				}
			}
		}
		return nil
	case AddFieldsStage:
		if len(s.Fields) == 0 {
			return errors.Validationf(path+".fields", "at least one field is required")
		}
		for i, f := range s.Fields {
			p := indexPath(path+".fields", i)
			if err := validateField(p+".field", f.Field); err != nil {
				return err
			}
			if ref, ok := f.Value.(FieldRef); ok {
				if err := validateField(p+".value", string(ref)); err != nil {
					return err
				}
			}
		}
		return nil
	case ProjectStage:
		if len(s.Projection) == 0 {
			return errors.Validationf(path+".projection", "at least one field is required")
		}
		return s.Projection.Validate(path + ".projection")
	case LimitStage:
		if s.N <= 0 {
			return errors.Validationf(path+".n", "must be positive")
		}
		return nil
	case SkipStage:
		if s.N < 0 {
			return errors.Validationf(path+".n", "must not be negative")
		}
		return nil
	case CountStage:
		return validateField(path+".field", s.Field)
	default:
		return errors.Validationf(path+".kind", "unsupported stage '%s'", s.Kind)
	}
}

// Pipeline is an ordered sequence of stages
type Pipeline []Stage

// Validate validates every stage in order
func (p Pipeline) Validate(path string) error {
	for i, s := range p {
		if err := s.Validate(indexPath(path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Scalar reports whether the pipeline always reduces to at most one document: its final
// stage is a keyless Group or a Count.
func (p Pipeline) Scalar() bool {
	if len(p) == 0 {
		return false
	}
	last := p[len(p)-1]
	return (last.Kind == GroupStage && last.GroupKey == "") || last.Kind == CountStage
}
