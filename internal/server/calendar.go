package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/service"
)

// reminderFrom reads ?remind=N&unit=&dir=. No remind parameter means no alarm.
func reminderFrom(r *http.Request) (*service.Reminder, error) {
	q := r.URL.Query()
	if !q.Has(config.QueryRemind) {
		return nil, nil
	}
	value, err := strconv.Atoi(q.Get(config.QueryRemind))
	if err != nil {
		return nil, domain.Errorf(domain.ErrValidation, config.TKeyErrInvalidReminder)
	}
	return &service.Reminder{
		Value: value,
		Unit:  q.Get(config.QueryUnit),
		Dir:   q.Get(config.QueryDir),
	}, nil
}

// handleCalendar serves the caller's birthdays as ICS with ETag revalidation.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	reminder, err := reminderFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.svc.CalendarFeed(r.Context(), actor(r), s.lang(r), reminder)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, etag)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}
