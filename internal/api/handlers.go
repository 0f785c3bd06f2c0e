package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"hubgateway/internal/auth"
	"hubgateway/internal/hub"
	"hubgateway/internal/queue"
	"hubgateway/internal/repository"
)

func registerRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/health", handleHealth).Methods("GET")

	gated := r.NewRoute().Subrouter()
	gated.Use(s.gate.Middleware)

	gated.HandleFunc("/profile/me", s.handleProfileMe).Methods("GET")
	gated.HandleFunc("/profile/{fid}", s.handleProfileByFid).Methods("GET")
	gated.HandleFunc("/profile/{fid}/follows", s.handleFollows).Methods("GET")
	gated.HandleFunc("/profile/{fid}/following", s.handleFollowing).Methods("GET")
	gated.HandleFunc("/submit_message", s.handleSubmitMessage).Methods("POST")
	gated.HandleFunc("/submit_messages", s.handleSubmitMessages).Methods("POST")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// warmUp opportunistically enqueues refresh tasks for fid. Always
// fire-and-forget: enqueueing never affects the response.
func (s *Server) warmUp(fid uint64) {
	s.queue.Send(queue.NewIndexFid(fid, false))
	s.queue.Send(queue.NewIndexLinks(fid, false))
	s.queue.Send(queue.NewIndexFidCasts(fid))
}

func (s *Server) handleProfileMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.warmUp(uint64(id.Signer.FID))
	writeJSON(w, http.StatusOK, id.Profile)
}

func fidFromPath(r *http.Request) (uint64, bool) {
	v, ok := mux.Vars(r)["fid"]
	if !ok {
		return 0, false
	}
	fid, err := strconv.ParseUint(v, 10, 64)
	return fid, err == nil
}

func (s *Server) handleProfileByFid(w http.ResponseWriter, r *http.Request) {
	fid, ok := fidFromPath(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	profile, err := s.repo.GetUserProfile(r.Context(), fid, false)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.warmUp(fid)
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleFollows(w http.ResponseWriter, r *http.Request) {
	fid, ok := fidFromPath(r)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	profiles, err := s.repo.GetProfileLinks(r.Context(), fid, false, repository.FollowedBy)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.warmUp(fid)
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	fid, ok := fidFromPath(r)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	profiles, err := s.repo.GetProfileLinks(r.Context(), fid, false, repository.Following)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.warmUp(fid)
	writeJSON(w, http.StatusOK, profiles)
}

// relayMessage runs the shared signer-match and active checks, then
// forwards the message to the hub.
func (s *Server) relayMessage(r *http.Request, m hub.Message) error {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return errBadRequest
	}
	if !bytes.Equal(m.Signer, id.Signer.PK) || !id.Signer.Active {
		return errBadRequest
	}
	return s.hub.SubmitMessage(r.Context(), &m)
}

var errBadRequest = errors.New("submit_message: signer mismatch or inactive")

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var m hub.Message
	if err := json.Unmarshal(body, &m); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.relayMessage(r, m); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type submitMessagesRequest struct {
	Updates []hub.Message `json:"updates"`
}

func (s *Server) handleSubmitMessages(w http.ResponseWriter, r *http.Request) {
	var req submitMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	for _, m := range req.Updates {
		if err := s.relayMessage(r, m); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
