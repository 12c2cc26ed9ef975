// Package api serves the management REST surface: client personas, harvested
// leads, funnel statistics, and saved test conversations. The dashboard is
// its only consumer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vocero-ai/vocero/internal/lead"
	"github.com/vocero-ai/vocero/internal/observe"
	"github.com/vocero-ai/vocero/internal/profile"
	"github.com/vocero-ai/vocero/internal/testbench"
)

// Server holds the stores the REST handlers read and write.
type Server struct {
	profiles profile.Store
	leads    lead.Store
	convos   testbench.Store
}

// New creates a Server.
func New(profiles profile.Store, leads lead.Store, convos testbench.Store) *Server {
	return &Server{profiles: profiles, leads: leads, convos: convos}
}

// Register adds all API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/clients", s.upsertClient)
	mux.HandleFunc("GET /api/clients", s.listClients)
	mux.HandleFunc("GET /api/clients/{key}", s.getClient)
	mux.HandleFunc("GET /api/leads", s.listLeads)
	mux.HandleFunc("GET /api/stats", s.leadStats)
	mux.HandleFunc("POST /api/test-conversations", s.saveConversation)
	mux.HandleFunc("GET /api/test-conversations", s.listConversations)
}

func (s *Server) upsertClient(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.profiles.Upsert(r.Context(), &p); err != nil {
		observe.Logger(r.Context()).Error("profile upsert failed", "client_key", p.ClientKey, "err", err)
		writeError(w, http.StatusInternalServerError, "profile save failed")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("profile list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "profile list failed")
		return
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	p, err := s.profiles.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such client")
			return
		}
		observe.Logger(r.Context()).Error("profile get failed", "client_key", key, "err", err)
		writeError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("client_key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "client_key is required")
		return
	}
	leads, err := s.leads.List(r.Context(), key)
	if err != nil {
		observe.Logger(r.Context()).Error("lead list failed", "client_key", key, "err", err)
		writeError(w, http.StatusInternalServerError, "lead list failed")
		return
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) leadStats(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("client_key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "client_key is required")
		return
	}
	stats, err := s.leads.Stats(r.Context(), key)
	if err != nil {
		observe.Logger(r.Context()).Error("lead stats failed", "client_key", key, "err", err)
		writeError(w, http.StatusInternalServerError, "lead stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) saveConversation(w http.ResponseWriter, r *http.Request) {
	var c testbench.Conversation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if c.ClientKey == "" || c.SessionID == "" {
		writeError(w, http.StatusBadRequest, "client_key and session_id are required")
		return
	}
	if err := s.convos.Save(r.Context(), &c); err != nil {
		observe.Logger(r.Context()).Error("conversation save failed", "session_id", c.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "conversation save failed")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("client_key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "client_key is required")
		return
	}
	convos, err := s.convos.List(r.Context(), key)
	if err != nil {
		observe.Logger(r.Context()).Error("conversation list failed", "client_key", key, "err", err)
		writeError(w, http.StatusInternalServerError, "conversation list failed")
		return
	}
	if convos == nil {
		convos = []testbench.Conversation{}
	}
	writeJSON(w, http.StatusOK, convos)
}

// writeJSON encodes v as JSON with the given status code. On encoding
// failure it falls back to a plain 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
