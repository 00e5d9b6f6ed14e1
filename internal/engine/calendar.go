package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/rappel-anniv/internal/config"
)

// CalendarEntry is one birthday rendered into the calendar feed.
type CalendarEntry struct {
	ID        int64
	Name      string
	BirthDate time.Time
	YearKnown bool
}

// Generator renders birthdays as an iCalendar feed.
type Generator struct {
	Clock Clock // Interface for time mocking.

	// FormatSummary allows the caller to inject localized strings into the logic layer.
	FormatSummary func(name string, age int, yearKnown bool) string

	// CalendarName overrides config.ICalCalName when set.
	CalendarName string
}

// BuildCalendar encodes entries as an iCalendar document with one all-day
// event per entry for the previous, current and next year. An empty
// reminderTrigger disables alarms. It also returns how many birthdays fall
// today.
func (g *Generator) BuildCalendar(ctx context.Context, entries []CalendarEntry, reminderTrigger string) ([]byte, int, error) {
	cal := ical.NewCalendar()

	calName := config.ICalCalName
	if g.CalendarName != "" {
		calName = g.CalendarName
	}

	// Set standard iCalendar headers
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, calName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	// RFC 7986: Suggest a refresh interval (Standardized in config)
	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	// Birthdays follow the civil date of the server clock; UTC is only for stamping.
	now := g.Clock.Now()
	// Stamped at the start of the day so that the bytes, and the feed's
	// ETag, only change with the data or the date.
	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(civilDay(now))

	today := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		events, isToday := g.createEvents(entry, reminderTrigger, now)
		if isToday {
			today++
			slog.Debug(config.MsgBdayToday,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyBdayID, entry.ID,
				config.LogKeyDOB, entry.BirthDate.Format(config.DateFormatFullDash))
		}

		for _, e := range events {
			e.Props.Set(dtStampProp)
			cal.Children = append(cal.Children, e.Component)
		}
	}

	// A feed with no events must still be a valid VCALENDAR for subscribers.
	if len(cal.Children) == 0 {
		g.logSuccess(len(entries), 0)
		return []byte(config.StubVCalendar), 0, nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	g.logSuccess(len(entries), today)
	return buf.Bytes(), today, nil
}

func (g *Generator) logSuccess(total, today int) {
	slog.Info(config.MsgGenSuccess,
		config.LogKeyComponent, config.CompEngine,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyFound, total),
			slog.Int(config.LogKeyToday, today),
		),
	)
}

// createEvents generates events for CurrentYear-1, CurrentYear, and CurrentYear+1.
// No event is created for a year before the person was born.
func (g *Generator) createEvents(entry CalendarEntry, reminderTrigger string, now time.Time) ([]*ical.Event, bool) {
	currentYear := now.Year()
	targetYears := []int{currentYear - 1, currentYear, currentYear + 1}
	todayDate := civilDay(now)
	uidBase := eventUID(entry)

	var events []*ical.Event
	isToday := false

	for _, y := range targetYears {
		if entry.YearKnown && y < entry.BirthDate.Year() {
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatUID, uidBase, y, config.ICalDomain))

		eventDate := OccurrenceIn(y, entry.BirthDate.Month(), entry.BirthDate.Day())
		if eventDate.Equal(todayDate) {
			isToday = true
		}

		age := 0
		if entry.YearKnown {
			age = AgeAt(entry.BirthDate, eventDate)
		}

		summary := fmt.Sprintf(config.FallbackSummary, entry.Name)
		if g.FormatSummary != nil {
			summary = g.FormatSummary(entry.Name, age, entry.YearKnown)
		}
		event.Props.SetText(config.PropSummary, summary)

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(eventDate)
		event.Props.Set(dtStartProp)

		if reminderTrigger != "" {
			addAlarm(event, reminderTrigger, summary)
		}

		events = append(events, event)
	}
	return events, isToday
}

// eventUID is stable for a given birthday so clients update events in place.
func eventUID(entry CalendarEntry) string {
	input := fmt.Sprintf(config.FormatHashInput,
		strconv.FormatInt(entry.ID, 10),
		entry.BirthDate.Format(config.DateFormatStorage),
		config.UIDSalt)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:config.UIDHashLength])
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set trigger manually to avoid "VALUE=TEXT" param
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}
