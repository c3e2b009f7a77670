// Package api exposes the HTTP surface. All resource routes are scoped to
// the caller identified by the X-User-ID header.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/observability"
	"github.com/UoduodihsLab/Tennel/internal/schedule"
	"github.com/UoduodihsLab/Tennel/internal/session"
	"github.com/UoduodihsLab/Tennel/internal/store"
	"github.com/UoduodihsLab/Tennel/internal/tasks"
)

const userHeader = "X-User-ID"

type Server struct {
	r         *chi.Mux
	store     *store.Store
	registry  *session.Registry
	tasks     *tasks.Service
	schedules *schedule.Service
	log       zerolog.Logger
}

func NewServer(st *store.Store, registry *session.Registry, taskSvc *tasks.Service, scheduleSvc *schedule.Service, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	s := &Server{
		r:         r,
		store:     st,
		registry:  registry,
		tasks:     taskSvc,
		schedules: scheduleSvc,
		log:       log.With().Str("component", "api").Logger(),
	}
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireUser)

		r.Post("/accounts", s.createAccount)
		r.Get("/accounts", s.listAccounts)
		r.Post("/accounts/{id}/connect", s.connectAccount)
		r.Post("/accounts/{id}/disconnect", s.disconnectAccount)

		r.Get("/channels", s.listChannels)
		r.Get("/channels/{id}", s.getChannel)

		r.Post("/medias", s.addMedia)

		r.Post("/tasks", s.createTask)
		r.Get("/tasks", s.listTasks)
		r.Get("/tasks/{id}", s.getTask)
		r.Post("/tasks/{id}/start", s.startTask)
		r.Delete("/tasks/{id}", s.deleteTask)

		r.Post("/schedules", s.createSchedule)
		r.Get("/schedules", s.listSchedules)
		r.Get("/schedules/{id}", s.getSchedule)
		r.Post("/schedules/{id}/start", s.startSchedule)
		r.Post("/schedules/{id}/stop", s.stopSchedule)
		// Resuming a stopped schedule re-registers under the same job id.
		r.Post("/schedules/{id}/resume", s.startSchedule)
		r.Delete("/schedules/{id}", s.deleteSchedule)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(userHeader) == "" {
			http.Error(w, userHeader+" header is required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	return r.Header.Get(userHeader)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusFor maps the domain error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrDuplicateRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCapacityExceeded), errors.Is(err, domain.ErrUnsupportedKind):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotConnected), errors.Is(err, domain.ErrAuthorizationFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

type createAccountReq struct {
	Phone       string `json:"phone"`
	TID         int64  `json:"tid"`
	Username    string `json:"username"`
	SessionName string `json:"session_name"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Phone == "" {
		http.Error(w, "phone is required", http.StatusBadRequest)
		return
	}
	id, err := s.store.CreateAccount(r.Context(), domain.Account{
		UserID:      userID(r),
		TID:         req.TID,
		Phone:       req.Phone,
		Username:    req.Username,
		SessionName: req.SessionName,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	account, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountView(account))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context(), userID(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	views := make([]map[string]any, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
	}
	writeJSON(w, http.StatusOK, views)
}

// connectAccount brings the account's session online. The response reports
// whether the connection (including authorization) succeeded.
func (s *Server) connectAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ownedAccount(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	online := s.registry.Connect(r.Context(), account.SessionName)
	if err := s.store.SetAccountOnline(r.Context(), account.ID, online); err != nil {
		s.fail(w, err)
		return
	}
	if online && !account.Authenticated {
		// Connecting proves the stored session is authorized.
		if err := s.store.SetAccountAuthenticated(r.Context(), account.ID, true); err != nil {
			s.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": account.ID, "online": online})
}

func (s *Server) disconnectAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ownedAccount(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.registry.Remove(r.Context(), account.SessionName)
	if err := s.store.SetAccountOnline(r.Context(), account.ID, false); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": account.ID, "online": false})
}

func (s *Server) ownedAccount(r *http.Request) (domain.Account, error) {
	account, err := s.store.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return domain.Account{}, err
	}
	if account.UserID != userID(r) {
		return domain.Account{}, domain.ErrPermissionDenied
	}
	return account, nil
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.store.ListChannels(r.Context(), userID(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) getChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := s.store.GetChannel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if channel.UserID != userID(r) {
		s.fail(w, domain.ErrPermissionDenied)
		return
	}
	writeJSON(w, http.StatusOK, channel)
}

type addMediaReq struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

func (s *Server) addMedia(w http.ResponseWriter, r *http.Request) {
	var req addMediaReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind := domain.MediaKind(req.Kind)
	switch kind {
	case domain.MediaAvatar, domain.MediaImage, domain.MediaVideo:
	default:
		http.Error(w, "kind must be avatar, image or video", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	id, err := s.store.AddMedia(r.Context(), domain.Media{UserID: userID(r), Kind: kind, Path: req.Path})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type createTaskReq struct {
	Title string          `json:"title"`
	Kind  string          `json:"kind"`
	Args  json.RawMessage `json:"args"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	task, err := s.tasks.Create(r.Context(), userID(r), req.Title, domain.TaskKind(req.Kind), req.Args)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	out, err := s.tasks.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) startTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Start(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createScheduleReq struct {
	Title  string          `json:"title"`
	Kind   string          `json:"kind"`
	Hour   int             `json:"hour"`
	Minute int             `json:"minute"`
	Second int             `json:"second"`
	Args   json.RawMessage `json:"args"`
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sc, err := s.schedules.Create(r.Context(), userID(r), req.Title, domain.ScheduleKind(req.Kind), req.Hour, req.Minute, req.Second, req.Args)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	out, err := s.schedules.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	sc, err := s.schedules.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) startSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Start(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) stopSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Stop(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func accountView(a domain.Account) map[string]any {
	return map[string]any{
		"id":            a.ID,
		"phone":         a.Phone,
		"username":      a.Username,
		"session_name":  a.SessionName,
		"authenticated": a.Authenticated,
		"online":        a.Online,
		"created_at":    a.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
