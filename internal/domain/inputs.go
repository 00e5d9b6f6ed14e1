package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/engine"
)

// Credentials are submitted on registration and login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims the email and lowercases it so lookups are case-insensitive.
func (c Credentials) Normalize() Credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

func (c Credentials) Validate() error {
	addr, err := mail.ParseAddress(c.Email)
	if err != nil || addr.Address != c.Email || !strings.Contains(c.Email, "@") {
		return Errorf(ErrValidation, config.TKeyErrInvalidEmail)
	}
	if len(c.Password) < config.MinPasswordLength {
		return Errorf(ErrValidation, config.TKeyErrPasswordShort)
	}
	return nil
}

// GroupInput creates or replaces the editable fields of a group.
type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Password    string `json:"password"`
}

func (in GroupInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return Errorf(ErrValidation, config.TKeyErrNameRequired)
	}
	return nil
}

// GroupPatch updates a group partially; nil fields are left unchanged.
type GroupPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Password    *string `json:"password"`
}

// Apply returns g with the patch applied, validated.
func (p GroupPatch) Apply(g Group) (Group, error) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.Password != nil {
		g.Password = *p.Password
	}
	in := GroupInput{Name: g.Name}
	return g, in.Validate()
}

// BirthdayInput is the payload for creating a birthday.
type BirthdayInput struct {
	Name      string    `json:"name"`
	BirthDate time.Time `json:"-"`
	YearKnown bool      `json:"-"`
	Notes     string    `json:"notes"`
	GroupID   int64     `json:"groupId"`
}

func (in BirthdayInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return Errorf(ErrValidation, config.TKeyErrNameRequired)
	}
	if err := ValidateBirthDate(in.BirthDate); err != nil {
		return err
	}
	if in.GroupID <= 0 {
		return Errorf(ErrValidation, config.TKeyErrInvalidID)
	}
	return nil
}

// BirthdayPatch updates a birthday partially; nil fields are left unchanged.
type BirthdayPatch struct {
	Name      *string
	BirthDate *time.Time
	YearKnown *bool
	Notes     *string
	GroupID   *int64
}

// Apply returns b with the patch applied, validated.
func (p BirthdayPatch) Apply(b Birthday) (Birthday, error) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.BirthDate != nil {
		b.BirthDate = *p.BirthDate
		b.YearKnown = true
	}
	if p.YearKnown != nil {
		b.YearKnown = *p.YearKnown
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	if p.GroupID != nil {
		b.GroupID = *p.GroupID
	}
	in := BirthdayInput{Name: b.Name, BirthDate: b.BirthDate, GroupID: b.GroupID}
	return b, in.Validate()
}

// ValidateBirthDate rejects the zero date and dates whose month/day do not exist.
func ValidateBirthDate(d time.Time) error {
	if d.IsZero() {
		return Errorf(ErrValidation, config.TKeyErrInvalidDate)
	}
	if err := engine.ValidateMonthDay(d.Month(), d.Day()); err != nil {
		return Errorf(ErrValidation, config.TKeyErrInvalidDate)
	}
	return nil
}

// ParseBirthDate parses a YYYY-MM-DD civil date as midnight UTC.
func ParseBirthDate(s string) (time.Time, error) {
	d, err := time.Parse(config.DateFormatStorage, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, Errorf(ErrValidation, config.TKeyErrInvalidDate)
	}
	return d, nil
}

// MemberInput adds a user to a group, identified by id or by email.
type MemberInput struct {
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	IsLeader bool   `json:"isLeader"`
}

func (in MemberInput) Validate() error {
	if in.UserID <= 0 && strings.TrimSpace(in.Email) == "" {
		return Errorf(ErrValidation, config.TKeyErrInvalidID)
	}
	return nil
}

// ParseBirthDateValue accepts a full YYYY-MM-DD date or a year-less --MM-DD
// one. The boolean reports whether the year was given.
func ParseBirthDateValue(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "--") {
		d, yearKnown, err := engine.ParseDate(s)
		if err != nil || yearKnown {
			return time.Time{}, false, Errorf(ErrValidation, config.TKeyErrInvalidDate)
		}
		return d, false, nil
	}
	d, err := ParseBirthDate(s)
	return d, true, err
}

// FormatBirthDate renders b's date the way ParseBirthDateValue reads it.
func FormatBirthDate(b Birthday) string {
	if !b.YearKnown {
		return b.BirthDate.Format("--01-02")
	}
	return b.BirthDate.Format(config.DateFormatStorage)
}
