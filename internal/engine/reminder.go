package engine

import (
	"fmt"

	"github.com/tartampluch/rappel-anniv/internal/config"
)

// ReminderTrigger builds the ISO 8601 duration used as a VALARM TRIGGER.
// Hours and minutes go in the time part of the duration ("-PT2H"), days do
// not ("-P1D").
func ReminderTrigger(value int, unit, dir string) (string, error) {
	if value < 0 {
		return "", fmt.Errorf("%w: reminder value %d", ErrInvalidArgument, value)
	}

	sign := config.ISOPeriodPrefix
	switch dir {
	case config.DirBefore, "":
		sign = config.ISONegativePrefix
	case config.DirAfter:
	default:
		return "", fmt.Errorf("%w: reminder direction %q", ErrInvalidArgument, dir)
	}

	switch unit {
	case config.UnitDays, "":
		return fmt.Sprintf("%s%d%s", sign, value, config.ISODay), nil
	case config.UnitHours:
		return fmt.Sprintf("%s%s%d%s", sign, config.ISOTimePrefix, value, config.ISOHour), nil
	case config.UnitMinutes:
		return fmt.Sprintf("%s%s%d%s", sign, config.ISOTimePrefix, value, config.ISOMinute), nil
	default:
		return "", fmt.Errorf("%w: reminder unit %q", ErrInvalidArgument, unit)
	}
}
