package engine

import "time"

// Contact is a person decoded from a vCard stream, ready to become a birthday
// record.
type Contact struct {
	Name string

	// DateOfBirth is the parsed BDAY. When YearKnown is false its year is
	// config.DefaultLeapYear so that --02-29 stays representable.
	DateOfBirth time.Time

	// YearKnown indicates if the vCard contained a year or just --MM-DD.
	YearKnown bool

	Note string
}

// ImportStats summarizes one vCard decoding pass.
type ImportStats struct {
	Processed    int // cards decoded successfully
	WithBirthday int // cards with a parseable BDAY
	Malformed    int // cards the decoder rejected
}
