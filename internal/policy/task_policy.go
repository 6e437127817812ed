// Package policy decides which principal may act on which task.
package policy

import (
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type Operation uint8

const (
	OpRead Operation = iota + 1
	OpUpdate
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// CanAccess allows admins everything and everyone else only their own tasks.
// The rule is the same for every operation.
func CanAccess(p user.Principal, t task.Task, op Operation) bool {
	if p.IsAdmin() {
		return true
	}
	return p.ID != "" && t.OwnerID == p.ID
}

// ScopeQuery adds the ownership constraint for non-admins. Any owner
// constraint already on q is replaced, never widened.
func ScopeQuery(p user.Principal, q task.Query) task.Query {
	if p.IsAdmin() {
		return q
	}

	owner := p.ID
	q.OwnerID = &owner
	return q
}
