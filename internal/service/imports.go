package service

import (
	"context"
	"io"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/engine"
)

// ImportResult summarizes a vCard import into a group.
type ImportResult struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
}

// ImportVCard creates one birthday per contact of r that carries a BDAY.
// Cards without a usable birthday are counted as skipped.
func (s *Service) ImportVCard(ctx context.Context, actor domain.User, groupID int64, r io.Reader) (ImportResult, error) {
	if _, err := s.requireMember(ctx, actor, groupID); err != nil {
		return ImportResult{}, err
	}
	return s.importContacts(ctx, actor, groupID, r)
}

// ImportVCardURL downloads an address book and imports it like ImportVCard.
func (s *Service) ImportVCardURL(ctx context.Context, actor domain.User, groupID int64, req engine.FetchRequest) (ImportResult, error) {
	if _, err := s.requireMember(ctx, actor, groupID); err != nil {
		return ImportResult{}, err
	}

	body, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		s.log.Warn(config.ErrImportSource,
			config.LogKeyGroupID, groupID,
			config.LogKeyError, err)
		return ImportResult{}, domain.Errorf(domain.ErrValidation, config.TKeyErrImportSource)
	}
	defer body.Close()

	return s.importContacts(ctx, actor, groupID, body)
}

func (s *Service) importContacts(ctx context.Context, actor domain.User, groupID int64, r io.Reader) (ImportResult, error) {
	contacts, stats, err := engine.DecodeContacts(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			return ImportResult{}, err
		}
		s.log.Warn(config.ErrVCardParse,
			config.LogKeyGroupID, groupID,
			config.LogKeyError, err)
		return ImportResult{}, domain.Errorf(domain.ErrValidation, config.TKeyErrImportSource)
	}

	res := ImportResult{Processed: stats.Processed + stats.Malformed}
	now := s.clock.Now().UTC()
	batch := make([]domain.Birthday, 0, len(contacts))
	for _, c := range contacts {
		in := domain.BirthdayInput{
			Name:      c.Name,
			BirthDate: c.DateOfBirth,
			YearKnown: c.YearKnown,
			Notes:     c.Note,
			GroupID:   groupID,
		}
		if in.Validate() != nil {
			continue
		}
		batch = append(batch, domain.Birthday{
			Name:      in.Name,
			BirthDate: in.BirthDate,
			YearKnown: in.YearKnown,
			Notes:     in.Notes,
			GroupID:   groupID,
			CreatedAt: now,
			CreatedBy: actor.ID,
		})
	}
	// One batch: a store failure leaves the group as it was.
	if _, err := s.store.CreateBirthdays(ctx, batch); err != nil {
		return ImportResult{}, err
	}
	res.Created = len(batch)
	res.Skipped = res.Processed - res.Created

	s.metrics.BirthdaysImported.Add(float64(res.Created))
	s.log.Info(config.MsgImportDone,
		config.LogKeyGroupID, groupID,
		config.LogKeyTotal, res.Processed,
		config.LogKeyCreated, res.Created,
		config.LogKeySkipped, res.Skipped)
	return res, nil
}
