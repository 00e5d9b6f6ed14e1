package service

import (
	"context"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/engine"
)

// Reminder configures the alarm attached to every calendar event.
type Reminder struct {
	Value int
	Unit  string // config.UnitDays, UnitHours or UnitMinutes
	Dir   string // config.DirBefore or DirAfter
}

// CalendarFeed renders every birthday readable by actor as an iCalendar
// document, with summaries in lang. A nil reminder adds no alarms.
func (s *Service) CalendarFeed(ctx context.Context, actor domain.User, lang string, reminder *Reminder) ([]byte, error) {
	trigger := ""
	if reminder != nil {
		t, err := engine.ReminderTrigger(reminder.Value, reminder.Unit, reminder.Dir)
		if err != nil {
			return nil, domain.Errorf(domain.ErrValidation, config.TKeyErrInvalidReminder)
		}
		trigger = t
	}

	birthdays, err := s.readableBirthdays(ctx, actor, BirthdayFilter{})
	if err != nil {
		return nil, err
	}
	entries := make([]engine.CalendarEntry, len(birthdays))
	for i, b := range birthdays {
		entries[i] = engine.CalendarEntry{
			ID:        b.ID,
			Name:      b.Name,
			BirthDate: b.BirthDate,
			YearKnown: b.YearKnown,
		}
	}

	gen := &engine.Generator{
		Clock:         s.clock,
		FormatSummary: s.translator.SummaryFormatter(lang),
		CalendarName:  s.translator.Msg(lang, config.TKeyCalName),
	}
	data, _, err := gen.BuildCalendar(ctx, entries, trigger)
	if err != nil {
		return nil, err
	}
	s.metrics.CalendarsServed.Inc()
	return data, nil
}
