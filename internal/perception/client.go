// Package perception turns the board and the attempt history into the next
// proposal by asking a language model. A proposal takes two calls: a free-text
// reasoning call followed by a parsing call that returns strict JSON.
package perception

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// LLMClient defines the interface for LLM providers.
type LLMClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// JSONClient is an LLMClient that can constrain its reply to a JSON object.
type JSONClient interface {
	LLMClient
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

var (
	// ErrNoAPIKey is returned by clients constructed without credentials.
	ErrNoAPIKey = errors.New("API key not configured")
	// ErrEmptyResponse is returned when the model answers with no content.
	ErrEmptyResponse = errors.New("empty response from model")
)

// permanent reports whether err will not go away on a retry: a request the
// provider rejected as malformed or unauthorized.
func permanent(err error) bool {
	if errors.Is(err, ErrNoAPIKey) {
		return true
	}
	var status int
	var oaErr *openai.APIError
	var reqErr *openai.RequestError
	var gErr genai.APIError
	switch {
	case errors.As(err, &oaErr):
		status = oaErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.As(err, &gErr):
		status = gErr.Code
	default:
		return false
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
