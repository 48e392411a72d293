package model

import (
	"strings"

	"github.com/autom8ter/docpipe/errors"
	"github.com/samber/lo"
)

// Op is an operator used to compare a documents field value against a value in a filter
type Op string

const (
	// OpEq matches on equality. An array field matches when any element is equal.
	OpEq Op = "$eq"
	// OpNe matches on inequality
	OpNe Op = "$ne"
	// OpLt matches on less than
	OpLt Op = "$lt"
	// OpLte matches on less than or equal to
	OpLte Op = "$lte"
	// OpGt matches on greater than
	OpGt Op = "$gt"
	// OpGte matches on greater than or equal to
	OpGte Op = "$gte"
	// OpIn matches on the field value being contained in a list
	OpIn Op = "$in"
	// OpNin matches on the field value not being contained in a list
	OpNin Op = "$nin"
	// OpAll matches an array field containing every element of a list
	OpAll Op = "$all"
	// OpExists matches on the presence (true) or absence (false) of the field
	OpExists Op = "$exists"
)

var filterOps = []Op{OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn, OpNin, OpAll, OpExists}

// Valid returns whether the operator is supported
func (o Op) Valid() bool {
	return lo.Contains(filterOps, o)
}

// listOp reports whether the operator compares against a list of values
func (o Op) listOp() bool {
	return o == OpIn || o == OpNin || o == OpAll
}

// Condition is field-level filter for database operations
type Condition struct {
	// Field is a field to compare against each documents field. Dot notation is supported.
	Field string `json:"field"`
	// Op is an operator used to compare the field against the value.
	Op Op `json:"op"`
	// Value is a value to compare against a documents field value
	Value any `json:"value"`
}

// Filter is a conjunction of conditions. A nil Filter is unset, use All() to match every document.
type Filter []Condition

// All returns an empty, non-nil filter that matches every document
func All() Filter {
	return Filter{}
}

// Where returns a filter from the given conditions
func Where(conditions ...Condition) Filter {
	return append(Filter{}, conditions...)
}

// And returns a copy of the filter with the conditions appended
func (f Filter) And(conditions ...Condition) Filter {
	out := append(Filter{}, f...)
	return append(out, conditions...)
}

// Eq matches documents where field equals value
func Eq(field string, value any) Condition { return Condition{Field: field, Op: OpEq, Value: value} }

// Ne matches documents where field does not equal value
func Ne(field string, value any) Condition { return Condition{Field: field, Op: OpNe, Value: value} }

// Lt matches documents where field is less than value
func Lt(field string, value any) Condition { return Condition{Field: field, Op: OpLt, Value: value} }

// Lte matches documents where field is less than or equal to value
func Lte(field string, value any) Condition { return Condition{Field: field, Op: OpLte, Value: value} }

// Gt matches documents where field is greater than value
func Gt(field string, value any) Condition { return Condition{Field: field, Op: OpGt, Value: value} }

// Gte matches documents where field is greater than or equal to value
func Gte(field string, value any) Condition { return Condition{Field: field, Op: OpGte, Value: value} }

// In matches documents where field equals any of values
func In(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// Nin matches documents where field equals none of values
func Nin(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpNin, Value: values}
}

// ContainsAll matches documents whose array field contains every one of values
func ContainsAll(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpAll, Value: values}
}

// Exists matches documents where the presence of field equals exists
func Exists(field string, exists bool) Condition {
	return Condition{Field: field, Op: OpExists, Value: exists}
}

// Validate validates the condition. path is the descriptor path reported on failure.
func (c Condition) Validate(path string) error {
	if err := validateField(path+".field", c.Field); err != nil {
		return err
	}
	return c.validateOperand(path)
}

func (c Condition) validateOperand(path string) error {
	if !c.Op.Valid() {
		return errors.Validationf(path+".op", "unsupported operator '%s'", c.Op)
	}
	if c.Op.listOp() && !isList(c.Value) {
		return errors.Validationf(path+".value", "operator '%s' requires a list", c.Op)
	}
	if c.Op == OpExists {
		if _, ok := c.Value.(bool); !ok {
			return errors.Validationf(path+".value", "operator '%s' requires a bool", c.Op)
		}
	}
	return nil
}

// Validate validates every condition in the filter
func (f Filter) Validate(path string) error {
	for i, c := range f {
		if err := c.Validate(indexPath(path, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateField(path, field string) error {
	switch {
	case field == "":
		return errors.Validationf(path, "empty field name")
	case strings.HasPrefix(field, "$"):
		return errors.Validationf(path, "field name '%s' may not start with '$'", field)
	case strings.HasPrefix(field, ".") || strings.HasSuffix(field, ".") || strings.Contains(field, ".."):
		return errors.Validationf(path, "malformed field path '%s'", field)
	}
	return nil
}
