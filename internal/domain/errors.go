package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized signals a missing or invalid caller identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document or one not owned by the caller.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentNotReady signals a document whose ingestion has not succeeded.
	ErrDocumentNotReady = errors.New("document not ready")
	// ErrNamespaceNotFound signals a vector namespace that was never written. Permanent.
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrInvalidRequest signals malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrQuotaExceeded signals a plan limit hit (pages per PDF, PDFs per month).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrSchemaValidation signals model output that failed structural validation.
	ErrSchemaValidation = errors.New("schema validation failed")
	// ErrExtractionParse signals an unparseable extraction response.
	ErrExtractionParse = errors.New("extraction parse failed")
	// ErrEvaluation signals a formula that could not be evaluated.
	ErrEvaluation = errors.New("evaluation failed")

	// ErrUpstreamTransient signals a retryable network or timeout failure.
	ErrUpstreamTransient = errors.New("upstream transient error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a chat model provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
)

// SchemaValidationError wraps ErrSchemaValidation with the offending detail.
type SchemaValidationError struct {
	Detail string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaValidation.Error(), e.Detail)
}

func (e *SchemaValidationError) Unwrap() error { return ErrSchemaValidation }

// NewSchemaValidation creates a schema validation error.
func NewSchemaValidation(format string, args ...any) error {
	return &SchemaValidationError{Detail: fmt.Sprintf(format, args...)}
}

// ExtractionParseError wraps ErrExtractionParse for one (document, component) cell.
type ExtractionParseError struct {
	DocumentID string
	Component  string
	Err        error
}

func (e *ExtractionParseError) Error() string {
	return fmt.Sprintf("%s: document %s, component %q: %v", ErrExtractionParse.Error(), e.DocumentID, e.Component, e.Err)
}

func (e *ExtractionParseError) Unwrap() []error { return []error{ErrExtractionParse, e.Err} }

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamTransient)
}
