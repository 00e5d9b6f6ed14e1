package server

import (
	"time"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
)

type roleRequest struct {
	Role domain.Role `json:"role"`
}

type importURLRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type birthdayRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birthDate"`
	Notes     string `json:"notes"`
	GroupID   int64  `json:"groupId"`
}

func (req birthdayRequest) input() (domain.BirthdayInput, error) {
	d, yearKnown, err := domain.ParseBirthDateValue(req.BirthDate)
	if err != nil {
		return domain.BirthdayInput{}, err
	}
	return domain.BirthdayInput{
		Name:      req.Name,
		BirthDate: d,
		YearKnown: yearKnown,
		Notes:     req.Notes,
		GroupID:   req.GroupID,
	}, nil
}

type birthdayPatchRequest struct {
	Name      *string `json:"name"`
	BirthDate *string `json:"birthDate"`
	Notes     *string `json:"notes"`
	GroupID   *int64  `json:"groupId"`
}

func (req birthdayPatchRequest) patch() (domain.BirthdayPatch, error) {
	p := domain.BirthdayPatch{Name: req.Name, Notes: req.Notes, GroupID: req.GroupID}
	if req.BirthDate != nil {
		d, yearKnown, err := domain.ParseBirthDateValue(*req.BirthDate)
		if err != nil {
			return domain.BirthdayPatch{}, err
		}
		p.BirthDate = &d
		p.YearKnown = &yearKnown
	}
	return p, nil
}

type birthdayResponse struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	BirthDate      string    `json:"birthDate"`
	YearKnown      bool      `json:"yearKnown"`
	Notes          string    `json:"notes"`
	GroupID        int64     `json:"groupId"`
	CreatedAt      time.Time `json:"createdAt"`
	CreatedBy      int64     `json:"createdBy"`
	NextOccurrence string    `json:"nextOccurrence"`
	DaysUntil      int       `json:"daysUntil"`
	AgeNext        int       `json:"ageNext,omitempty"`
	Label          string    `json:"label"`
}

func (s *Server) birthdayOut(lang string, u domain.UpcomingBirthday) birthdayResponse {
	return birthdayResponse{
		ID:             u.ID,
		Name:           u.Name,
		BirthDate:      domain.FormatBirthDate(u.Birthday),
		YearKnown:      u.YearKnown,
		Notes:          u.Notes,
		GroupID:        u.GroupID,
		CreatedAt:      u.CreatedAt,
		CreatedBy:      u.CreatedBy,
		NextOccurrence: u.NextOccurrence.Format(config.DateFormatStorage),
		DaysUntil:      u.DaysUntil,
		AgeNext:        u.AgeNext,
		Label:          s.tr.DaysLabel(lang, u.DaysUntil),
	}
}

func (s *Server) birthdaysOut(lang string, list []domain.UpcomingBirthday) []birthdayResponse {
	out := make([]birthdayResponse, len(list))
	for i, u := range list {
		out[i] = s.birthdayOut(lang, u)
	}
	return out
}
