package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/metrics"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/realtime"
)

type Service struct {
	alerts Repository
	users  UserDirectory
	policy *auth.AlertPolicy
	events realtime.Publisher
	logger zerolog.Logger
}

func NewService(alerts Repository, users UserDirectory, events realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		alerts: alerts,
		users:  users,
		policy: auth.DefaultAlertPolicy(),
		events: events,
		logger: logger.With().Str("component", "alert").Logger(),
	}
}

// SetPolicy replaces the default access policy.
func (s *Service) SetPolicy(p *auth.AlertPolicy) {
	s.policy = p
}

// CreateAlert persists c for an existing user and announces it to that
// user's realtime channels. A failed announcement does not fail the call.
func (s *Service) CreateAlert(ctx context.Context, c Candidate) (*Alert, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.FindUserByID(ctx, c.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.AlertCreateFailuresTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("user %s: %w", c.UserID, ErrNotFound)
		}
		metrics.AlertCreateFailuresTotal.WithLabelValues("store").Inc()
		return nil, fmt.Errorf("find user: %w", err)
	}

	status := c.Status
	if status == "" {
		status = c.Severity.DefaultStatus()
	}
	a := &Alert{
		UserID:   c.UserID,
		Title:    c.Title,
		Message:  c.Message,
		Category: c.Category,
		Severity: c.Severity,
		Status:   status,
		IsRead:   false,
	}
	if err := s.alerts.Create(ctx, a); err != nil {
		metrics.AlertCreateFailuresTotal.WithLabelValues("store").Inc()
		return nil, fmt.Errorf("create alert: %w", err)
	}
	metrics.AlertsCreatedTotal.WithLabelValues(a.Category, string(a.Severity)).Inc()

	s.announce(ctx, a, c)
	return a, nil
}

func (s *Service) announce(ctx context.Context, a *Alert, c Candidate) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(newEvent(a, c))
	if err != nil {
		s.logger.Error().Err(err).Str("alert_id", a.ID.String()).Msg("failed to encode alert event")
		return
	}
	ev := realtime.Event{
		Type:      realtime.EventNewAlert,
		UserID:    a.UserID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("alert_id", a.ID.String()).
			Str("user_id", a.UserID.String()).
			Msg("failed to publish alert event")
	}
}

// scope resolves the user ids whose alerts requester may read. A nil
// result means every user.
func (s *Service) scope(ctx context.Context, requester auth.Identity) ([]uuid.UUID, error) {
	switch s.policy.ReadScope(requester) {
	case auth.ScopeAll:
		return nil, nil
	case auth.ScopeAssignedPatients:
		patients, err := s.users.FindUsersAssignedToDoctor(ctx, requester.UserID)
		if err != nil {
			return nil, fmt.Errorf("find assigned patients: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(patients))
		for _, p := range patients {
			ids = append(ids, p.ID)
		}
		return ids, nil
	default:
		return []uuid.UUID{requester.UserID}, nil
	}
}

// GetAlerts lists the alerts visible to requester, newest first. A doctor
// with no assigned patients gets an empty list.
func (s *Service) GetAlerts(ctx context.Context, requester auth.Identity) ([]*Alert, error) {
	ids, err := s.scope(ctx, requester)
	if err != nil {
		return nil, err
	}
	items, err := s.alerts.List(ctx, Filter{UserIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return items, nil
}

// UnreadCount counts unread alerts visible to requester.
func (s *Service) UnreadCount(ctx context.Context, requester auth.Identity) (int, error) {
	ids, err := s.scope(ctx, requester)
	if err != nil {
		return 0, err
	}
	n, err := s.alerts.Count(ctx, Filter{UserIDs: ids, UnreadOnly: true})
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

func (s *Service) GetAlert(ctx context.Context, id uuid.UUID, requester auth.Identity) (*Alert, error) {
	return s.load(ctx, id, requester, auth.ActionRead)
}

// UpdateAlert applies p to the alert. Only title, message and category change.
func (s *Service) UpdateAlert(ctx context.Context, id uuid.UUID, p Patch, requester auth.Identity) (*Alert, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id, requester, auth.ActionMutate)
	if err != nil {
		return nil, err
	}
	p.apply(a)
	if err := s.alerts.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}
	return a, nil
}

func (s *Service) DeleteAlert(ctx context.Context, id uuid.UUID, requester auth.Identity) error {
	if _, err := s.load(ctx, id, requester, auth.ActionMutate); err != nil {
		return err
	}
	if err := s.alerts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

// MarkAlertAsRead sets is_read. Marking an already-read alert succeeds
// without a write.
func (s *Service) MarkAlertAsRead(ctx context.Context, id uuid.UUID, requester auth.Identity) (*Alert, error) {
	a, err := s.load(ctx, id, requester, auth.ActionMutate)
	if err != nil {
		return nil, err
	}
	if a.IsRead {
		return a, nil
	}
	if err := s.alerts.MarkRead(ctx, a.ID); err != nil {
		return nil, fmt.Errorf("mark alert read: %w", err)
	}
	a.IsRead = true
	return a, nil
}

// load fetches an alert and checks that requester may perform action on it.
// Absence is reported before denial.
func (s *Service) load(ctx context.Context, id uuid.UUID, requester auth.Identity, action auth.Action) (*Alert, error) {
	a, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}

	res := auth.Resource{OwnerID: a.UserID}
	if requester.Role == auth.RoleDoctor && requester.UserID != a.UserID {
		owner, err := s.users.FindUserByID(ctx, a.UserID)
		switch {
		case err == nil:
			res.AssignedDoctorID = owner.DoctorID
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("find alert owner: %w", err)
		}
	}

	if d := s.policy.Evaluate(requester, action, res); !d.Allowed {
		metrics.AlertAccessDeniedTotal.WithLabelValues(string(action)).Inc()
		s.logger.Debug().
			Str("alert_id", id.String()).
			Str("user_id", requester.UserID.String()).
			Str("action", string(action)).
			Msg(d.Reason)
		return nil, ErrAccessDenied
	}
	return a, nil
}
