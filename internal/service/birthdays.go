package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/engine"
)

// BirthdayFilter narrows ListBirthdays. Zero values mean "no filter".
type BirthdayFilter struct {
	GroupID int64
	Search  string
}

func (s *Service) CreateBirthday(ctx context.Context, actor domain.User, in domain.BirthdayInput) (domain.UpcomingBirthday, error) {
	if err := in.Validate(); err != nil {
		return domain.UpcomingBirthday{}, err
	}
	if _, err := s.requireMember(ctx, actor, in.GroupID); err != nil {
		return domain.UpcomingBirthday{}, err
	}

	b, err := s.store.CreateBirthday(ctx, domain.Birthday{
		Name:      strings.TrimSpace(in.Name),
		BirthDate: in.BirthDate,
		YearKnown: in.YearKnown,
		Notes:     in.Notes,
		GroupID:   in.GroupID,
		CreatedAt: s.clock.Now().UTC(),
		CreatedBy: actor.ID,
	})
	if err != nil {
		return domain.UpcomingBirthday{}, withKey(err, domain.ErrNotFound, config.TKeyErrGroupNotFound)
	}
	s.log.Info(config.MsgBdayCreated,
		config.LogKeyBdayID, b.ID,
		config.LogKeyGroupID, b.GroupID)
	return s.annotateOne(b)
}

func (s *Service) GetBirthday(ctx context.Context, actor domain.User, id int64) (domain.UpcomingBirthday, error) {
	b, err := s.readableBirthday(ctx, actor, id)
	if err != nil {
		return domain.UpcomingBirthday{}, err
	}
	return s.annotateOne(b)
}

func (s *Service) readableBirthday(ctx context.Context, actor domain.User, id int64) (domain.Birthday, error) {
	b, err := s.store.GetBirthday(ctx, id)
	if err != nil {
		return domain.Birthday{}, withKey(err, domain.ErrNotFound, config.TKeyErrBdayNotFound)
	}
	if _, err := s.requireMember(ctx, actor, b.GroupID); err != nil {
		return domain.Birthday{}, err
	}
	return b, nil
}

func (s *Service) editableBirthday(ctx context.Context, actor domain.User, id int64) (domain.Birthday, error) {
	b, err := s.store.GetBirthday(ctx, id)
	if err != nil {
		return domain.Birthday{}, withKey(err, domain.ErrNotFound, config.TKeyErrBdayNotFound)
	}
	if _, err := s.requireLeader(ctx, actor, b.GroupID); err != nil {
		return domain.Birthday{}, err
	}
	return b, nil
}

// UpdateBirthday applies patch. Moving a birthday to another group also
// requires membership of the destination.
func (s *Service) UpdateBirthday(ctx context.Context, actor domain.User, id int64, patch domain.BirthdayPatch) (domain.UpcomingBirthday, error) {
	b, err := s.editableBirthday(ctx, actor, id)
	if err != nil {
		return domain.UpcomingBirthday{}, err
	}
	if patch.GroupID != nil && *patch.GroupID != b.GroupID {
		if _, err := s.requireMember(ctx, actor, *patch.GroupID); err != nil {
			return domain.UpcomingBirthday{}, err
		}
	}

	b, err = patch.Apply(b)
	if err != nil {
		return domain.UpcomingBirthday{}, err
	}
	b.Name = strings.TrimSpace(b.Name)
	if err := s.store.UpdateBirthday(ctx, b); err != nil {
		return domain.UpcomingBirthday{}, withKey(err, domain.ErrNotFound, config.TKeyErrBdayNotFound)
	}
	return s.annotateOne(b)
}

func (s *Service) DeleteBirthday(ctx context.Context, actor domain.User, id int64) error {
	if _, err := s.editableBirthday(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteBirthday(ctx, id); err != nil {
		return withKey(err, domain.ErrNotFound, config.TKeyErrBdayNotFound)
	}
	s.log.Info(config.MsgBdayDeleted,
		config.LogKeyBdayID, id,
		config.LogKeyUserID, actor.ID)
	return nil
}

// ListBirthdays returns the readable birthdays matching f, each annotated
// with its next occurrence. Search results are ordered by name, the rest by id.
func (s *Service) ListBirthdays(ctx context.Context, actor domain.User, f BirthdayFilter) ([]domain.UpcomingBirthday, error) {
	birthdays, err := s.readableBirthdays(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	return s.annotate(birthdays)
}

func (s *Service) readableBirthdays(ctx context.Context, actor domain.User, f BirthdayFilter) ([]domain.Birthday, error) {
	var groupIDs []int64
	if f.GroupID > 0 {
		if _, err := s.requireMember(ctx, actor, f.GroupID); err != nil {
			return nil, err
		}
		groupIDs = []int64{f.GroupID}
	} else {
		ids, err := s.accessibleGroupIDs(ctx, actor)
		if err != nil {
			return nil, err
		}
		groupIDs = ids
	}

	if q := strings.TrimSpace(f.Search); q != "" {
		return s.store.SearchBirthdays(ctx, groupIDs, q)
	}
	return s.store.ListBirthdaysByGroups(ctx, groupIDs)
}

// Upcoming returns the readable birthdays whose next occurrence is at most
// days away, soonest first. Birthdays on the same day keep id order.
func (s *Service) Upcoming(ctx context.Context, actor domain.User, days int, f BirthdayFilter) ([]domain.UpcomingBirthday, error) {
	if days < 0 {
		return nil, domain.Errorf(domain.ErrValidation, config.TKeyErrInvalidWindow)
	}
	f.Search = ""
	birthdays, err := s.readableBirthdays(ctx, actor, f)
	if err != nil {
		return nil, err
	}

	upcoming, err := s.window(birthdays, days)
	if err != nil {
		return nil, err
	}
	s.metrics.UpcomingWindow.Observe(float64(days))
	s.log.Debug(config.MsgUpcomingQueried,
		config.LogKeyUserID, actor.ID,
		config.LogKeyWindow, days,
		config.LogKeyFound, len(upcoming))
	return upcoming, nil
}

// Stats summarizes what the actor can see.
func (s *Service) Stats(ctx context.Context, actor domain.User) (domain.Stats, error) {
	groupIDs, err := s.accessibleGroupIDs(ctx, actor)
	if err != nil {
		return domain.Stats{}, err
	}
	birthdays, err := s.store.ListBirthdaysByGroups(ctx, groupIDs)
	if err != nil {
		return domain.Stats{}, err
	}
	upcoming, err := s.window(birthdays, config.DefaultUpcomingDays)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		TotalBirthdays:    len(birthdays),
		TotalGroups:       len(groupIDs),
		UpcomingBirthdays: len(upcoming),
	}, nil
}

// window filters birthdays through the recurrence window and keeps its order.
func (s *Service) window(birthdays []domain.Birthday, days int) ([]domain.UpcomingBirthday, error) {
	byID := make(map[int64]domain.Birthday, len(birthdays))
	anchors := make([]engine.Anchor, len(birthdays))
	for i, b := range birthdays {
		byID[b.ID] = b
		anchors[i] = engine.AnchorOf(b.ID, b.BirthDate)
	}

	occurrences, err := engine.ComputeUpcoming(s.clock.Now(), days, anchors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrUpcomingCompute, err)
	}

	out := make([]domain.UpcomingBirthday, len(occurrences))
	for i, occ := range occurrences {
		out[i] = upcomingOf(byID[occ.AnchorID], occ)
	}
	return out, nil
}

// annotate attaches the next occurrence to every birthday, keeping the input
// order.
func (s *Service) annotate(birthdays []domain.Birthday) ([]domain.UpcomingBirthday, error) {
	anchors := make([]engine.Anchor, len(birthdays))
	for i, b := range birthdays {
		anchors[i] = engine.AnchorOf(b.ID, b.BirthDate)
	}
	occurrences, err := engine.ComputeUpcoming(s.clock.Now(), engine.FullYearWindow, anchors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrUpcomingCompute, err)
	}

	next := make(map[int64]engine.NextOccurrence, len(occurrences))
	for _, occ := range occurrences {
		next[occ.AnchorID] = occ
	}
	out := make([]domain.UpcomingBirthday, len(birthdays))
	for i, b := range birthdays {
		out[i] = upcomingOf(b, next[b.ID])
	}
	return out, nil
}

func (s *Service) annotateOne(b domain.Birthday) (domain.UpcomingBirthday, error) {
	out, err := s.annotate([]domain.Birthday{b})
	if err != nil {
		return domain.UpcomingBirthday{}, err
	}
	return out[0], nil
}

func upcomingOf(b domain.Birthday, occ engine.NextOccurrence) domain.UpcomingBirthday {
	u := domain.UpcomingBirthday{
		Birthday:       b,
		NextOccurrence: occ.Date,
		DaysUntil:      occ.DaysUntil,
	}
	if b.YearKnown {
		u.AgeNext = engine.AgeAt(b.BirthDate, occ.Date)
	}
	return u
}
