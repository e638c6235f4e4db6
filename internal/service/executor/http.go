package executor

import (
	"context"
	"fmt"

	"TitanGate/internal/domain/models"
	drepo "TitanGate/internal/domain/repository"
	xhttp "TitanGate/pkg/http"
)

// HTTPExecutor submits signals to an external execution service over
// HTTP. The response body is the collaborator's ExecResult; orderRef
// is passed through opaquely.
type HTTPExecutor struct {
	client *xhttp.Client
	url    string
}

// NewHTTPExecutor creates an executor posting to url.
func NewHTTPExecutor(client *xhttp.Client, url string) *HTTPExecutor {
	return &HTTPExecutor{client: client, url: url}
}

type executeRequest struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
	Fastpass   bool    `json:"fastpass"`
}

// Execute posts the signal and decodes the result. Context deadline
// bounds the call; the pipeline never retries it.
func (e *HTTPExecutor) Execute(ctx context.Context, s *models.Signal) (*models.ExecResult, error) {
	req := &executeRequest{
		ID:         s.ID,
		Symbol:     s.Symbol,
		Side:       s.Side,
		Strategy:   s.Strategy,
		Confidence: s.Confidence,
		Fastpass:   s.Fastpass,
	}

	var res models.ExecResult
	err := e.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: "POST",
		URL:    e.url,
		Body:   req,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", s.ID, err)
	}
	return &res, nil
}

var _ drepo.Executor = (*HTTPExecutor)(nil)
