package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tenantd/internal/auth"
	"github.com/wolfeidau/tenantd/internal/logger"
	"github.com/wolfeidau/tenantd/internal/service"
	"github.com/wolfeidau/tenantd/internal/store"
)

// Server exposes the provisioning and auth services over HTTP.
type Server struct {
	provisioning *service.ProvisioningService
	auth         *service.AuthService
	tokens       *auth.TokenManager
	log          zerolog.Logger
}

// New creates an HTTP server for the registry services.
func New(provisioning *service.ProvisioningService, authSvc *service.AuthService, tokens *auth.TokenManager, log zerolog.Logger) *Server {
	return &Server{
		provisioning: provisioning,
		auth:         authSvc,
		tokens:       tokens,
		log:          log,
	}
}

// Routes builds the router. Create, get, and login are public; update and
// delete require a bearer token.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(logger.Requests(s.log))

	r.Route("/api/v1/org", func(r chi.Router) {
		r.Post("/create", s.handleCreate)
		r.Get("/get", s.handleGet)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.tokens))
			r.Put("/update", s.handleUpdate)
			r.Delete("/delete", s.handleDelete)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	org, err := s.provisioning.CreateOrganization(r.Context(), req.OrganizationName, req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, organizationResponse{
		OrganizationName: org.Name,
		CollectionName:   org.CollectionName,
		IsActive:         org.IsActive,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("organization_name")

	org, err := s.provisioning.GetOrganization(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, organizationResponse{
		OrganizationName: org.Name,
		CollectionName:   org.CollectionName,
		IsActive:         org.IsActive,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	var req updateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	name := r.URL.Query().Get("organization_name")

	updated, err := s.provisioning.UpdateAdmin(r.Context(), name, principal, req.NewEmail, req.NewPassword)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !updated {
		writeJSON(w, http.StatusOK, messageResponse{Message: "No data provided for update."})
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Organization admin details updated successfully."})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	name := r.URL.Query().Get("organization_name")

	if err := s.provisioning.DeleteOrganization(r.Context(), name, principal); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeError maps service and store errors to response codes. Conflicts map
// to 400 to match the public API contract.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrOrganizationNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "organization not found"})
	case errors.Is(err, store.ErrOrganizationExists):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "organization name already exists"})
	case errors.Is(err, store.ErrDuplicateEmail):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "admin email already exists"})
	case errors.Is(err, store.ErrPartitionExists):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "organization partition already exists"})
	case errors.Is(err, store.ErrAdminNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "organization admin not found"})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "not authorized for this organization"})
	case errors.Is(err, service.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "incorrect email or password"})
	case errors.Is(err, service.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrStoreUnavailable):
		s.log.Error().Err(err).Msg("Store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
	default:
		s.log.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
