package services

import (
	"chat-room/contract"
	"chat-room/domain/chat"
	"chat-room/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

var _ contract.ISweeper = (*EvictionService)(nil)

// EvictionService removes participants who stopped sending heartbeats and
// announces their departure. The same threshold selects and deletes.
type EvictionService struct {
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	threshold    time.Duration
	clock        func() time.Time
	log          *slog.Logger
}

func NewEvictionService(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	threshold time.Duration,
	clock func() time.Time) *EvictionService {
	return &EvictionService{
		participants: participants,
		messages:     messages,
		threshold:    threshold,
		clock:        clock,
		log:          log,
	}
}

// Sweep runs one eviction pass:
//  1. select participants inactive for longer than the threshold,
//  2. delete them in bulk,
//  3. append a departure message for each selected participant.
//
// A failed selection aborts the run. A failed deletion does not stop the
// departures, so a participant can be announced as gone while still present
// until the next run. Every failure is aggregated in the returned error.
func (s *EvictionService) Sweep(ctx context.Context) (chat.SweepReport, error) {
	now := s.clock()
	cutoff := now.Add(-s.threshold)

	stale, err := s.participants.FindInactiveSince(ctx, cutoff)
	if err != nil {
		return chat.SweepReport{}, fmt.Errorf("select inactive participants: %w", err)
	}
	if len(stale) == 0 {
		return chat.SweepReport{}, nil
	}

	report := chat.SweepReport{
		Evicted: lo.Map(stale, func(p chat.Participant, _ int) string { return p.Name }),
	}
	var errs []error

	if report.Deleted, err = s.participants.DeleteInactiveSince(ctx, cutoff); err != nil {
		errs = append(errs, fmt.Errorf("delete inactive participants: %w", err))
	}

	for _, p := range stale {
		if _, err := s.messages.Append(ctx, chat.NewDeparture(p.Name, now)); err != nil {
			errs = append(errs, fmt.Errorf("departure of %s: %w", p.Name, err))
		}
	}

	s.log.Info("Inactive participants evicted", "selected", len(stale), "deleted", report.Deleted)
	return report, stderrors.Join(errs...)
}
