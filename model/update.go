package model

import (
	"github.com/autom8ter/docpipe/errors"
	"github.com/samber/lo"
)

// UpdateOp is an update operator applied to a documents field
type UpdateOp string

const (
	// SetOp sets the field to the value
	SetOp UpdateOp = "$set"
	// UnsetOp removes the field
	UnsetOp UpdateOp = "$unset"
	// IncOp increments a numeric field by the value
	IncOp UpdateOp = "$inc"
	// PushOp appends the value to an array field
	PushOp UpdateOp = "$push"
	// AddToSetOp appends the value to an array field unless already present
	AddToSetOp UpdateOp = "$addToSet"
	// PullOp removes every array element equal to the value, or matching an ElementCondition
	PullOp UpdateOp = "$pull"
)

var updateOps = []UpdateOp{SetOp, UnsetOp, IncOp, PushOp, AddToSetOp, PullOp}

// Valid returns whether the operator is supported
func (o UpdateOp) Valid() bool {
	return lo.Contains(updateOps, o)
}

// ElementCondition is a predicate applied to each element of an array field
type ElementCondition struct {
	Op    Op  `json:"op"`
	Value any `json:"value"`
}

// Directive is a single update applied to a field
type Directive struct {
	Op    UpdateOp `json:"op"`
	Field string   `json:"field"`
	// Value is the operand. For PullOp it may be an ElementCondition.
	Value any `json:"value,omitempty"`
}

// Update is an ordered list of directives
type Update []Directive

// Set sets field to value
func Set(field string, value any) Directive {
	return Directive{Op: SetOp, Field: field, Value: value}
}

// Unset removes field
func Unset(field string) Directive {
	return Directive{Op: UnsetOp, Field: field, Value: ""}
}

// Inc increments field by amount
func Inc(field string, amount any) Directive {
	return Directive{Op: IncOp, Field: field, Value: amount}
}

// Push appends value to the array field
func Push(field string, value any) Directive {
	return Directive{Op: PushOp, Field: field, Value: value}
}

// AddToSet appends value to the array field unless it is already present
func AddToSet(field string, value any) Directive {
	return Directive{Op: AddToSetOp, Field: field, Value: value}
}

// Pull removes every element of the array field equal to value
func Pull(field string, value any) Directive {
	return Directive{Op: PullOp, Field: field, Value: value}
}

// PullWhere removes every element of the array field matching the operator and value
func PullWhere(field string, op Op, value any) Directive {
	return Directive{Op: PullOp, Field: field, Value: ElementCondition{Op: op, Value: value}}
}

// Updates returns an update from the given directives
func Updates(directives ...Directive) Update {
	return append(Update{}, directives...)
}

// Validate validates the directive. path is the descriptor path reported on failure.
func (d Directive) Validate(path string) error {
	if !d.Op.Valid() {
		return errors.Validationf(path+".op", "unsupported update operator '%s'", d.Op)
	}
	if err := validateField(path+".field", d.Field); err != nil {
		return err
	}
	switch d.Op {
	case IncOp:
		if !isNumber(d.Value) {
			return errors.Validationf(path+".value", "operator '%s' requires a number", d.Op)
		}
	case PullOp:
		if cond, ok := d.Value.(ElementCondition); ok {
			if err := (Condition{Field: d.Field, Op: cond.Op, Value: cond.Value}).validateOperand(path + ".value"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate validates the update. An update must contain at least one directive and may
// not touch the same field twice or modify the document identifier.
func (u Update) Validate(path string) error {
	if len(u) == 0 {
		return errors.Validationf(path, "at least one directive is required")
	}
	seen := map[string]bool{}
	for i, d := range u {
		p := indexPath(path, i)
		if err := d.Validate(p); err != nil {
			return err
		}
		if d.Field == IDField {
			return errors.Validationf(p+".field", "'%s' is immutable", IDField)
		}
		if seen[d.Field] {
			return errors.Validationf(p+".field", "conflicting directives for '%s'", d.Field)
		}
		seen[d.Field] = true
	}
	return nil
}
