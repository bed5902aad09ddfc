package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error kinds. Match with errors.Is.
var (
	// ErrConfig marks inputs that make aggregation impossible before it starts:
	// empty communes or observations, unsupported departments.
	ErrConfig = errors.New("configuration error")

	// ErrData marks inputs that are present but unusable, such as a zero total
	// area in a weighting group or a missing variable column.
	ErrData = errors.New("data error")

	// ErrLookup marks a join that found nothing for an entire requested group.
	ErrLookup = errors.New("lookup error")
)

// Error carries the kind of failure plus whichever identifiers locate it.
type Error struct {
	Kind       error
	Op         string
	Commune    string
	PointID    *int
	Department Department
	Date       time.Time
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Commune != "" {
		fmt.Fprintf(&b, " commune=%s", e.Commune)
	}
	if e.PointID != nil {
		fmt.Fprintf(&b, " point=%d", *e.PointID)
	}
	if e.Department != "" {
		fmt.Fprintf(&b, " department=%s", e.Department)
	}
	if !e.Date.IsZero() {
		fmt.Fprintf(&b, " date=%s", e.Date.Format(time.DateOnly))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	} else if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool { return e.Kind == target }

func pointRef(id int) *int { return &id }
