package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrInvalid      = errors.New("invalid alert")
)

// Severity is an ordered urgency tier: low < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// DefaultStatus is the status an alert gets when none is supplied.
func (s Severity) DefaultStatus() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "warning"
	default:
		return "info"
	}
}

const (
	CategoryGlucose       = "glucose"
	CategoryBloodPressure = "blood_pressure"

	LevelLow  = "low"
	LevelHigh = "high"
)

// Alert maps to the alerts table.
type Alert struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Category  string    `db:"category" json:"category"`
	Severity  Severity  `db:"severity" json:"severity"`
	Status    string    `db:"status" json:"status"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Candidate is an alert that has not been persisted yet.
type Candidate struct {
	UserID   uuid.UUID `json:"user_id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Category string    `json:"category"`
	Level    string    `json:"level,omitempty"`
	Severity Severity  `json:"severity"`
	Status   string    `json:"status,omitempty"`
	Value    *float64  `json:"value,omitempty"`
}

func (c Candidate) Validate() error {
	var problems []string
	if c.UserID == uuid.Nil {
		problems = append(problems, "user_id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(c.Message) == "" {
		problems = append(problems, "message is required")
	}
	if strings.TrimSpace(c.Category) == "" {
		problems = append(problems, "category is required")
	}
	if !c.Severity.Valid() {
		problems = append(problems, fmt.Sprintf("severity %q must be low, high or critical", c.Severity))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Patch holds the fields an update may change. Nil fields are left alone.
type Patch struct {
	Title    *string `json:"title,omitempty"`
	Message  *string `json:"message,omitempty"`
	Category *string `json:"category,omitempty"`
}

func (p Patch) Validate() error {
	for name, v := range map[string]*string{"title": p.Title, "message": p.Message, "category": p.Category} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalid, name)
		}
	}
	return nil
}

func (p Patch) apply(a *Alert) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Message != nil {
		a.Message = *p.Message
	}
	if p.Category != nil {
		a.Category = *p.Category
	}
}

// User is the slice of the users table the alert lifecycle depends on.
type User struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	FullName string     `db:"full_name" json:"full_name"`
	Role     string     `db:"role" json:"role"`
	DoctorID *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
}

// Event is the payload of a new-alert realtime event.
type Event struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Category  string    `json:"category"`
	Level     string    `json:"level,omitempty"`
	Severity  Severity  `json:"severity"`
	Value     *float64  `json:"value,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(a *Alert, c Candidate) Event {
	return Event{
		ID:        a.ID,
		UserID:    a.UserID,
		Category:  a.Category,
		Level:     c.Level,
		Severity:  a.Severity,
		Value:     c.Value,
		Message:   a.Message,
		Timestamp: a.CreatedAt,
	}
}
