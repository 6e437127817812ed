package task

import (
	"strings"

	"github.com/geocoder89/taskhub/internal/apperr"
)

// Filter is the caller-controlled part of a list request.
type Filter struct {
	Status   *Status
	Priority *Priority
}

// ParseFilter reads the optional status/priority query values. Empty
// strings mean "no constraint".
func ParseFilter(status, priority string) (Filter, error) {
	var f Filter
	var fields []apperr.FieldError

	if s := Status(strings.TrimSpace(status)); s != "" {
		if !s.IsValid() {
			fields = append(fields, apperr.FieldError{
				Field: "status", Rule: "oneof", Param: "pending in-progress completed",
				Message: apperr.RuleMessage("oneof", "pending in-progress completed"),
			})
		} else {
			f.Status = &s
		}
	}

	if p := Priority(strings.TrimSpace(priority)); p != "" {
		if !p.IsValid() {
			fields = append(fields, apperr.FieldError{
				Field: "priority", Rule: "oneof", Param: "low medium high",
				Message: apperr.RuleMessage("oneof", "low medium high"),
			})
		} else {
			f.Priority = &p
		}
	}

	if len(fields) > 0 {
		return Filter{}, apperr.Validation("Invalid filter", fields...)
	}

	return f, nil
}

// Query is what the store evaluates: the caller's filter plus an optional
// ownership constraint added by the access policy.
type Query struct {
	OwnerID  *string
	Status   *Status
	Priority *Priority
}

func (f Filter) Query() Query {
	return Query{Status: f.Status, Priority: f.Priority}
}

type Field uint8

const (
	FieldOwner Field = iota + 1
	FieldStatus
	FieldPriority
)

func (f Field) String() string {
	switch f {
	case FieldOwner:
		return "owner"
	case FieldStatus:
		return "status"
	case FieldPriority:
		return "priority"
	default:
		return "unknown"
	}
}

// Predicate is a single equality constraint on a task field.
type Predicate struct {
	Field Field
	Value string
}

// Predicates returns the equality constraints of q, AND-ed by the store.
// An empty result means "all tasks".
func (q Query) Predicates() []Predicate {
	preds := make([]Predicate, 0, 3)

	if q.OwnerID != nil {
		preds = append(preds, Predicate{Field: FieldOwner, Value: *q.OwnerID})
	}
	if q.Status != nil {
		preds = append(preds, Predicate{Field: FieldStatus, Value: string(*q.Status)})
	}
	if q.Priority != nil {
		preds = append(preds, Predicate{Field: FieldPriority, Value: string(*q.Priority)})
	}

	return preds
}

func (p Predicate) Match(t Task) bool {
	switch p.Field {
	case FieldOwner:
		return t.OwnerID == p.Value
	case FieldStatus:
		return string(t.Status) == p.Value
	case FieldPriority:
		return string(t.Priority) == p.Value
	default:
		return false
	}
}

// Matches reports whether t satisfies every predicate of q.
func (q Query) Matches(t Task) bool {
	for _, p := range q.Predicates() {
		if !p.Match(t) {
			return false
		}
	}
	return true
}
