// Package api exposes collection membership operations over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openrepo/curata/internal/collections"
	"github.com/openrepo/curata/internal/query"
	"github.com/openrepo/curata/internal/repo"
)

// Server holds the HTTP server dependencies
type Server struct {
	backend query.Backend
	manager *repo.Manager
	lister  *collections.Lister

	// mintNamespace is the namespace for server-minted PIDs.
	mintNamespace string
}

// New creates a new API server
func New(backend query.Backend, manager *repo.Manager, lister *collections.Lister, mintNamespace string) *Server {
	if mintNamespace == "" {
		mintNamespace = "obj"
	}
	return &Server{
		backend:       backend,
		manager:       manager,
		lister:        lister,
		mintNamespace: mintNamespace,
	}
}

// Router returns the chi router with all API routes mounted
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/objects", s.CreateObject)
		r.Get("/objects/{pid}", s.GetObject)
		r.Delete("/objects/{pid}", s.DeleteObject)
		r.Get("/objects/{pid}/parents", s.GetParents)

		r.Get("/collections", s.SearchCollections)
		r.Get("/collections/{pid}/members", s.ListMembers)
		r.Post("/collections/{pid}/members", s.AddMember)
		r.Delete("/collections/{pid}/members/{member}", s.RemoveMember)
	})

	return r
}

// CreateObjectRequest is the request body for creating an object
type CreateObjectRequest struct {
	PID        string `json:"pid,omitempty"` // minted when empty
	Label      string `json:"label"`
	Owner      string `json:"owner,omitempty"`
	State      string `json:"state,omitempty"`
	Collection bool   `json:"collection,omitempty"` // type as a collection object
}

// CreateObjectResponse is the response for creating an object
type CreateObjectResponse struct {
	PID     string    `json:"pid"`
	Created time.Time `json:"created"`
}

// CreateObject handles POST /api/objects
func (s *Server) CreateObject(w http.ResponseWriter, r *http.Request) {
	var req CreateObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pidStr := req.PID
	if pidStr == "" {
		pidStr = fmt.Sprintf("%s:%s", s.mintNamespace, uuid.New().String())
	}
	pid, err := repo.ParsePID(pidStr)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	obj := &repo.Object{
		PID:      pid,
		Label:    req.Label,
		Owner:    req.Owner,
		State:    req.State,
		Created:  now,
		Modified: now,
	}
	if req.Collection {
		obj.Rels.Add(repo.Triple{
			Subject:   pid,
			Predicate: repo.HasModel,
			Object:    repo.CollectionModel.String(),
		})
	}

	if err := s.backend.UpsertObject(r.Context(), obj); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CreateObjectResponse{PID: pid.String(), Created: now})
}

// ObjectResponse is the JSON shape of a repository object
type ObjectResponse struct {
	PID      string           `json:"pid"`
	Label    string           `json:"label"`
	Owner    string           `json:"owner,omitempty"`
	State    string           `json:"state"`
	Created  time.Time        `json:"created"`
	Modified time.Time        `json:"modified"`
	Rels     []TripleResponse `json:"rels,omitempty"`
}

// TripleResponse is the JSON shape of a relationship triple
type TripleResponse struct {
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// GetObject handles GET /api/objects/{pid}
func (s *Server) GetObject(w http.ResponseWriter, r *http.Request) {
	pid, err := repo.ParsePID(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, err)
		return
	}

	obj, err := s.backend.GetObject(r.Context(), pid)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ObjectResponse{
		PID:      obj.PID.String(),
		Label:    obj.Label,
		Owner:    obj.Owner,
		State:    obj.State,
		Created:  obj.Created,
		Modified: obj.Modified,
	}
	for _, t := range obj.Rels.All() {
		resp.Rels = append(resp.Rels, TripleResponse{
			Predicate: t.Predicate.String(),
			Object:    t.Object,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteObject handles DELETE /api/objects/{pid}
func (s *Server) DeleteObject(w http.ResponseWriter, r *http.Request) {
	pid, err := repo.ParsePID(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.backend.DeleteObject(r.Context(), pid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": pid.String()})
}

// ParentsResponse lists an object's parent collection PIDs
type ParentsResponse struct {
	PID     string   `json:"pid"`
	Parents []string `json:"parents"`
}

// GetParents handles GET /api/objects/{pid}/parents
// Supports query param: ?exclude=<pid> to drop one parent from the result
func (s *Server) GetParents(w http.ResponseWriter, r *http.Request) {
	pid, err := repo.ParsePID(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, err)
		return
	}

	var parents []repo.PID
	if excl := r.URL.Query().Get("exclude"); excl != "" {
		parents, err = s.manager.OtherParents(r.Context(), pid, repo.PID(excl))
	} else {
		parents, err = s.manager.ParentPIDs(r.Context(), pid)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ParentsResponse{PID: pid.String(), Parents: []string{}}
	for _, p := range parents {
		resp.Parents = append(resp.Parents, p.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchCollections handles GET /api/collections?filter=<text>
func (s *Server) SearchCollections(w http.ResponseWriter, r *http.Request) {
	results, err := s.lister.SearchCollections(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ListMembers handles GET /api/collections/{pid}/members
// Supports query params: ?page=N (zero-based), ?limit=N, ?mode=manage
func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	pid, err := repo.ParsePID(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	page := 0
	if pStr := q.Get("page"); pStr != "" {
		page, err = strconv.Atoi(pStr)
		if err != nil {
			http.Error(w, "invalid page parameter", http.StatusBadRequest)
			return
		}
	}
	limit := 0
	if lStr := q.Get("limit"); lStr != "" {
		limit, err = strconv.Atoi(lStr)
		if err != nil {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
	}

	result, err := s.lister.Members(r.Context(), pid, page, limit, query.FilterMode(q.Get("mode")))
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Members == nil {
		result.Members = []query.MemberRecord{}
	}
	writeJSON(w, http.StatusOK, result)
}

// AddMemberRequest is the request body for adding a member
type AddMemberRequest struct {
	Member string `json:"member"`
}

// AddMember handles POST /api/collections/{pid}/members
func (s *Server) AddMember(w http.ResponseWriter, r *http.Request) {
	collection, err := repo.ParsePID(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	member, err := repo.ParsePID(req.Member)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.manager.AddToCollection(r.Context(), member, collection); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"member":     member.String(),
		"collection": collection.String(),
	})
}

// RemoveMember handles DELETE /api/collections/{pid}/members/{member}
func (s *Server) RemoveMember(w http.ResponseWriter, r *http.Request) {
	collection, err := repo.ParsePID(chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, err)
		return
	}
	member, err := repo.ParsePID(chi.URLParam(r, "member"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.manager.RemoveFromCollection(r.Context(), member, collection); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"member":     member.String(),
		"collection": collection.String(),
	})
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case repo.IsInvalidArgument(err):
		status = http.StatusBadRequest
	case repo.IsNotFound(err):
		status = http.StatusNotFound
	case repo.IsBackendUnavailable(err):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}
