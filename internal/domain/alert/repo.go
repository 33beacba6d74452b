package alert

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows List and Count. A nil UserIDs means every user; an empty
// non-nil slice matches nothing.
type Filter struct {
	UserIDs    []uuid.UUID
	UnreadOnly bool
}

// Repository persists alerts. It carries no business rules. GetByID, Update,
// MarkRead and Delete return ErrNotFound for unknown ids. List orders newest
// first. Update never writes is_read; it reloads it into the alert.
type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	Update(ctx context.Context, a *Alert) error
	MarkRead(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter) ([]*Alert, error)
	Count(ctx context.Context, f Filter) (int, error)
}

// UserDirectory resolves users and patient-doctor assignments.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindUsersAssignedToDoctor(ctx context.Context, doctorID uuid.UUID) ([]*User, error)
}
