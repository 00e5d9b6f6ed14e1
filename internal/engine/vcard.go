package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/rappel-anniv/internal/config"
)

// DecodeContacts reads every vCard in r and returns the contacts that carry a
// usable birthday. Malformed cards and unparseable dates are skipped.
// A failure of r itself aborts decoding.
func DecodeContacts(ctx context.Context, r io.Reader) ([]Contact, ImportStats, error) {
	src := &readErrRecorder{r: r}
	decoder := vcard.NewDecoder(src)
	var stats ImportStats
	var contacts []Contact

	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if src.err != nil {
			return nil, stats, fmt.Errorf("%s: %w", config.ErrVCardParse, src.err)
		}
		if err != nil {
			// Keep going: one broken card should not cost the whole address book.
			stats.Malformed++
			slog.Warn(config.MsgSkippedCard,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyError, err)
			continue
		}

		stats.Processed++
		bday := card.Get(config.VCardBDAY)
		if bday == nil || bday.Value == "" {
			continue
		}

		birthDate, yearKnown, err := ParseDate(bday.Value)
		if err != nil {
			slog.Debug(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyValue, bday.Value)
			continue
		}
		stats.WithBirthday++

		// Name Strategy: FN (Formatted) > N (Structured) > Fallback
		name := config.FallbackName
		if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
			name = fn.Value
		} else if n := card.Get(config.VCardN); n != nil && n.Value != "" {
			name = n.Value
		}

		var note string
		if f := card.Get(config.VCardNote); f != nil {
			note = f.Value
		}

		contacts = append(contacts, Contact{
			Name:        name,
			DateOfBirth: birthDate,
			YearKnown:   yearKnown,
			Note:        note,
		})
	}

	return contacts, stats, nil
}

// ParseDate handles the date formats found in vCard BDAY fields. The boolean
// result reports whether the value carried a year.
func ParseDate(value string) (time.Time, bool, error) {
	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}

	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true, nil
		}
	}

	// Truncated dates (Year unknown) - vCard specific.
	// time.Parse rejects --02-29 without a leap year, so parse the parts in
	// the fallback leap year.
	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f+" 2006", value+" 2000"); err == nil {
			safeDate := time.Date(config.DefaultLeapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return safeDate, false, nil
		}
	}

	return time.Time{}, false, fmt.Errorf("%s: %q", config.ErrDateParse, value)
}

// readErrRecorder remembers the first non-EOF error of the underlying reader,
// which the vCard decoder would otherwise report as a malformed card forever.
type readErrRecorder struct {
	r   io.Reader
	err error
}

func (e *readErrRecorder) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && e.err == nil {
		e.err = err
	}
	return n, err
}
