package chi

import (
	"net/http"

	filesuc "github.com/kailas-cloud/reportlens/internal/usecase/files"
)

// AuthCallback handles POST /api/auth/callback.
func (s *Server) AuthCallback(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}

	u, err := s.users.Sync(r.Context(), id.UserID, id.Email)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Email: u.Email, Plan: u.PlanSlug})
}

// CompleteUpload handles POST /api/uploads/complete.
func (s *Server) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req uploadCompleteRequest
	if !s.decode(w, r, &req) {
		return
	}

	doc, created, err := s.files.Register(r.Context(), filesuc.Upload{
		UserID: id.UserID,
		Key:    req.Key,
		Name:   req.Name,
		URL:    req.URL,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/files/"+doc.ID())
	}
	writeJSON(w, status, fileToResponse(&doc))
}

// ListFiles handles GET /api/files.
func (s *Server) ListFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}

	docs, err := s.files.List(r.Context(), id.UserID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]fileResponse, len(docs))
	for i := range docs {
		items[i] = fileToResponse(&docs[i])
	}
	writeJSON(w, http.StatusOK, fileListResponse{Items: items})
}

// GetFile handles GET /api/files/{id}.
func (s *Server) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	docID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	doc, err := s.files.Get(r.Context(), id.UserID, docID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileToResponse(&doc))
}

// GetFileByKey handles GET /api/files/by-key/{key}.
func (s *Server) GetFileByKey(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	key, ok := pathParam(w, r, "key")
	if !ok {
		return
	}

	doc, err := s.files.GetByKey(r.Context(), id.UserID, key)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileToResponse(&doc))
}

// GetFileStatus handles GET /api/files/{id}/status.
// Unknown and foreign documents report PENDING so upload pollers keep waiting.
func (s *Server) GetFileStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	docID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	st, err := s.files.Status(r.Context(), id.UserID, docID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileStatusResponse{ID: docID, Status: string(st)})
}

// DeleteFile handles DELETE /api/files/{id}.
func (s *Server) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	docID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.files.Delete(r.Context(), id.UserID, docID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
