package server

import (
	"io"
	"mime"
	"net/http"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/engine"
	"github.com/tartampluch/rappel-anniv/internal/service"
)

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in domain.GroupInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.svc.CreateGroup(r.Context(), actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.ListGroups(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.svc.GetGroup(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch domain.GroupPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.svc.UpdateGroup(r.Context(), actor(r), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteGroup(r.Context(), actor(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in domain.MemberInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.AddMember(r.Context(), actor(r), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	members, err := s.svc.ListMembers(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if members == nil {
		members = []domain.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, err := pathID(r, config.ParamUserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.RemoveMember(r.Context(), actor(r), groupID, userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport reads a vCard body, or a JSON {"url", "username", "password"}
// document pointing at a remote address book.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, config.ParamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var res service.ImportResult
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get(config.HeaderContentType)); mediaType == "application/json" {
		var req importURLRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		res, err = s.svc.ImportVCardURL(r.Context(), actor(r), id, engine.FetchRequest{
			URL:      req.URL,
			Username: req.Username,
			Password: req.Password,
		})
	} else {
		var body io.Reader = http.MaxBytesReader(w, r.Body, config.MaxImportSize)
		res, err = s.svc.ImportVCard(r.Context(), actor(r), id, body)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
