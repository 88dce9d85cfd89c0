package chi

import (
	"errors"
	"net/http"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	domchat "github.com/kailas-cloud/reportlens/internal/domain/chat"
	chatuc "github.com/kailas-cloud/reportlens/internal/usecase/chat"
)

// ListMessages handles GET /api/messages?document_id=..&document_id=..&limit=&cursor=.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}

	var (
		documentIDs []string
		limit       *int
		cursor      *string
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "document_id", q, &documentIDs); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid format for parameter document_id")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid format for parameter limit")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "cursor", q, &cursor); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid format for parameter cursor")
		return
	}

	scope, err := domchat.NewScope(documentIDs...)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	n, c := 0, ""
	if limit != nil {
		n = *limit
	}
	if cursor != nil {
		c = *cursor
	}

	page, err := s.conversations.History(r.Context(), id.UserID, scope, n, c)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := messagePageResponse{Messages: make([]messageResponse, len(page.Messages))}
	for i, m := range page.Messages {
		resp.Messages[i] = messageToResponse(m)
	}
	if page.NextCursor != "" {
		next := page.NextCursor
		resp.NextCursor = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// PostMessage handles POST /api/messages. The answer is streamed as chunked
// text/plain. Failures before the first chunk get a JSON error; after it the
// response is cut short.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req postMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	scope, err := domchat.NewScope(req.DocumentIDs...)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	turn, err := s.conversations.Begin(r.Context(), chatuc.Ask{UserID: id.UserID, Scope: scope, Text: req.Message})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	started := false
	sink := func(chunk string) error {
		if !started {
			started = true
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Message-ID", turn.UserMessage().ID)
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err //nolint:wrapcheck // the turn wraps sink errors
		}
		if err := rc.Flush(); err != nil && !isFlushUnsupported(err) {
			return err //nolint:wrapcheck // the turn wraps sink errors
		}
		return nil
	}

	if _, err := turn.Stream(r.Context(), sink); err != nil {
		if !started {
			s.handleDomainError(w, r, err)
			return
		}
		s.requestLogger(r).Warn("chat stream cut short", zap.Error(err))
		return
	}
	if !started {
		// Empty answer: still a successful turn.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Message-ID", turn.UserMessage().ID)
		w.WriteHeader(http.StatusOK)
	}
}

func isFlushUnsupported(err error) bool {
	return errors.Is(err, http.ErrNotSupported)
}
