package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/reportlens/internal/domain"
)

// parseAPIError extracts a human-readable error from the API response and wraps it
// with the provider sentinel. Throttling, 5xx and network failures are also transient.
func parseAPIError(err error, kind string, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return classify(reqErr.HTTPStatusCode,
			fmt.Errorf("%s API error %d: %s: %w", kind, reqErr.HTTPStatusCode, detail, sentinel))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classify(apiErr.HTTPStatusCode,
			fmt.Errorf("%s API error %d: %s: %w", kind, apiErr.HTTPStatusCode, apiErr.Message, sentinel))
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request canceled: %w", kind, err)
	}
	return fmt.Errorf("%s request failed: %w: %w", kind, sentinel, domain.ErrUpstreamTransient)
}

func classify(status int, err error) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", err, domain.ErrUpstreamTransient)
	}
	return err
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
