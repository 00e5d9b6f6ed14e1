package server

import (
	"net/http"
	"strconv"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/service"
)

func (s *Server) handleCreateBirthday(w http.ResponseWriter, r *http.Request) {
	var req birthdayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.svc.CreateBirthday(r.Context(), actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.birthdayOut(s.lang(r), b))
}

// handleListBirthdays serves ?groupId=, ?search= and ?upcoming=. A
// non-numeric upcoming value means the default window.
func (s *Server) handleListBirthdays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f service.BirthdayFilter
	if v := q.Get(config.QueryGroupID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			s.writeError(w, r, domain.Errorf(domain.ErrValidation, config.TKeyErrInvalidID))
			return
		}
		f.GroupID = id
	}
	f.Search = q.Get(config.QuerySearch)

	var (
		list []domain.UpcomingBirthday
		err  error
	)
	if q.Has(config.QueryUpcoming) {
		days, convErr := strconv.Atoi(q.Get(config.QueryUpcoming))
		if convErr != nil {
			days = config.DefaultUpcomingDays
		}
		list, err = s.svc.Upcoming(r.Context(), actor(r), days, f)
	} else {
		list, err = s.svc.ListBirthdays(r.Context(), actor(r), f)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.birthdaysOut(s.lang(r), list))
}

func (s *Server) handleGetBirthday(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.svc.GetBirthday(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.birthdayOut(s.lang(r), b))
}

func (s *Server) handleUpdateBirthday(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req birthdayPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.svc.UpdateBirthday(r.Context(), actor(r), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.birthdayOut(s.lang(r), b))
}

func (s *Server) handleDeleteBirthday(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteBirthday(r.Context(), actor(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
