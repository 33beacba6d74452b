package vitals

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/monjedAmarna/chronicare-sub001/internal/domain/alert"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/metrics"
)

// AlertCreator is the part of alert.Service the ingestor needs.
type AlertCreator interface {
	CreateAlert(ctx context.Context, c alert.Candidate) (*alert.Alert, error)
}

// Ingestor feeds newly recorded readings through the evaluator and raises
// an alert for every candidate.
type Ingestor struct {
	alerts AlertCreator
	logger zerolog.Logger
}

func NewIngestor(alerts AlertCreator, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		alerts: alerts,
		logger: logger.With().Str("component", "vitals").Logger(),
	}
}

// ProcessReading evaluates r for userID and creates its alerts one at a
// time. A candidate that fails is logged and skipped; the rest still run.
// The returned error is non-nil only when ctx ends before all candidates
// were attempted.
func (i *Ingestor) ProcessReading(ctx context.Context, userID uuid.UUID, r Reading) ([]*alert.Alert, error) {
	metrics.ReadingsEvaluatedTotal.WithLabelValues(r.Type).Inc()
	candidates := Evaluate(r)

	created := make([]*alert.Alert, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		c.UserID = userID
		metrics.CandidatesTotal.WithLabelValues(c.Category, string(c.Severity)).Inc()

		a, err := i.alerts.CreateAlert(ctx, c)
		if err != nil {
			i.logger.Error().Err(err).
				Str("user_id", userID.String()).
				Str("category", c.Category).
				Str("severity", string(c.Severity)).
				Msg("failed to create alert from reading")
			continue
		}
		created = append(created, a)
	}

	if len(created) > 0 {
		i.logger.Info().
			Str("user_id", userID.String()).
			Str("type", r.Type).
			Int("alerts", len(created)).
			Msg("reading raised alerts")
	}
	return created, nil
}
