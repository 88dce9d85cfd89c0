package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reportlens/internal/domain"
	logpkg "github.com/kailas-cloud/reportlens/internal/logger"
	healthuc "github.com/kailas-cloud/reportlens/internal/usecase/health"
	"github.com/kailas-cloud/reportlens/internal/usecase/ingestion"
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeValidation       = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeNotFound         = "not_found"
	codeDocumentNotFound = "document_not_found"
	codeDocumentNotReady = "document_not_ready"
	codeInvalidRequest   = "invalid_request"
	codeQuotaExceeded    = "quota_exceeded"
	codeBusy             = "ingestion_busy"
	codeSchemaValidation = "schema_validation_failed"
	codeLLMProvider      = "llm_provider_error"
	codeEmbedding        = "embedding_provider_error"
	codeUpstream         = "upstream_unavailable"
	codeTimeout          = "timeout"
	codeInternal         = "internal_error"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Services are the use cases behind the API.
type Services struct {
	Files         Files
	Conversations Conversations
	KPIs          KPIs
	Overviews     Overviews
	Users         Users
	Health        Health
}

// Server serves the reportlens HTTP API.
type Server struct {
	files         Files
	conversations Conversations
	kpis          KPIs
	overviews     Overviews
	users         Users
	health        Health
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	s := &Server{
		files:         svc.Files,
		conversations: svc.Conversations,
		kpis:          svc.KPIs,
		overviews:     svc.Overviews,
		users:         svc.Users,
		health:        svc.Health,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
	}
	// Order matters: the first match wins.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrDocumentNotReady, http.StatusConflict, codeDocumentNotReady),
		sentinelHandler(domain.ErrNamespaceNotFound, http.StatusConflict, codeDocumentNotReady),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeInvalidRequest),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(ingestion.ErrDispatcherBusy, http.StatusServiceUnavailable, codeBusy),
		sentinelHandler(ingestion.ErrDispatcherClosed, http.StatusServiceUnavailable, codeBusy),
		sentinelHandler(domain.ErrSchemaValidation, http.StatusBadGateway, codeSchemaValidation),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, codeLLMProvider),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbedding),
		sentinelHandler(domain.ErrUpstreamTransient, http.StatusBadGateway, codeUpstream),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout),
	}
	return s
}

// Mount registers every route on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/callback", s.AuthCallback)
		r.Post("/uploads/complete", s.CompleteUpload)

		r.Get("/files", s.ListFiles)
		r.Get("/files/by-key/{key}", s.GetFileByKey)
		r.Get("/files/{id}", s.GetFile)
		r.Get("/files/{id}/status", s.GetFileStatus)
		r.Delete("/files/{id}", s.DeleteFile)

		r.Get("/messages", s.ListMessages)
		r.Post("/messages", s.PostMessage)

		r.Post("/kpi", s.ComputeKPI)
		r.Post("/overview", s.Overview)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// caller returns the authenticated user or writes 401.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
	}
	return id, ok
}

// decode reads a JSON body into dst and validates its struct tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, validationMessage(err))
		return false
	}
	return true
}

// pathParam binds a simple-style path parameter.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || v == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("Invalid format for parameter %s", name))
		return "", false
	}
	return v, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("field %s failed %q validation", fe.Field(), fe.Tag())
	}
	return "invalid request"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnauthorized,
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrDocumentNotReady,
		domain.ErrNamespaceNotFound,
		domain.ErrInvalidRequest,
		domain.ErrQuotaExceeded,
		ingestion.ErrDispatcherBusy,
		ingestion.ErrDispatcherClosed,
		domain.ErrSchemaValidation,
		domain.ErrLLMProviderError,
		domain.ErrEmbeddingProviderError,
		domain.ErrUpstreamTransient,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// requestLogger prefers the per-request logger installed by WideEventMiddleware.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if requestInfoFrom(r.Context()) == nil {
		return s.logger
	}
	return logpkg.FromContext(r.Context())
}
