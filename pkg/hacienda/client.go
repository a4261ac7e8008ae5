package hacienda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	authPath        = "/seguridad/auth"
	receptionPath   = "/fesv/recepciondte"
	batchPath       = "/fesv/recepcionlote"
	contingencyPath = "/fesv/contingencia"
	voidPath        = "/fesv/anulardte"
	queryPath       = "/fesv/recepcion/consultadte/"

	estadoProcessed = "PROCESADO"
	estadoRejected  = "RECHAZADO"
)

// Client is a stateless wrapper around the Ministerio de Hacienda reception
// API. It classifies responses and never retries; retry policy lives in the
// transmission worker so that retry accounting stays in one place.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Hacienda client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.SubmitTimeout,
		},
	}, nil
}

// Authenticate exchanges tenant credentials for a bearer token. A non-OK
// answer or an unreachable endpoint surfaces as *AuthError; the caller
// decides whether the enclosing job retries.
func (c *Client) Authenticate(ctx context.Context, env Environment, creds Credentials) (string, error) {
	form := url.Values{}
	form.Set("user", creds.User)
	form.Set("pwd", creds.Password)

	ctx, cancel := context.WithTimeout(ctx, c.config.AuthTimeout)
	defer cancel()

	endpoint := c.config.BaseURL(env) + authPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Status: "UNREACHABLE", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Status: "UNREACHABLE", Message: err.Error()}
	}

	var authResp authResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return "", &AuthError{
			Status:  fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: truncate(string(body), 200),
		}
	}

	if resp.StatusCode != http.StatusOK || authResp.Status != "OK" || authResp.Body.Token == "" {
		msg := authResp.Error
		if msg == "" {
			msg = truncate(string(body), 200)
		}
		return "", &AuthError{Status: authResp.Status, Message: msg}
	}

	return authResp.Body.Token, nil
}

// SubmitDocument sends a single signed document for reception.
func (c *Client) SubmitDocument(ctx context.Context, env Environment, token string, req ReceptionRequest) (*Result, error) {
	req.Ambiente = env.Code()
	return c.submit(ctx, env, token, receptionPath, req, c.config.SubmitTimeout)
}

// SubmitBatch sends a lot of signed documents for reception.
func (c *Client) SubmitBatch(ctx context.Context, env Environment, token string, req BatchReceptionRequest) (*Result, error) {
	req.Ambiente = env.Code()
	return c.submit(ctx, env, token, batchPath, req, c.config.SubmitTimeout)
}

// VoidDocument asks the authority to invalidate a previously accepted document.
func (c *Client) VoidDocument(ctx context.Context, env Environment, token string, req VoidRequest) (*Result, error) {
	req.Ambiente = env.Code()
	return c.submit(ctx, env, token, voidPath, req, c.config.SubmitTimeout)
}

// ReportContingency reports a contingency event covering offline emissions.
func (c *Client) ReportContingency(ctx context.Context, env Environment, token string, req ContingencyRequest) (*Result, error) {
	return c.submit(ctx, env, token, contingencyPath, req, c.config.SubmitTimeout)
}

// QueryStatus looks up the reception status of a document by generation code.
func (c *Client) QueryStatus(ctx context.Context, env Environment, token, generationCode string) (*StatusQuery, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	defer cancel()

	endpoint := c.config.BaseURL(env) + queryPath + generationCode
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create query request: %w", err)
	}
	req.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, truncate(string(body), 200))
	}

	var status StatusQuery
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status response: %w", err)
	}
	return &status, nil
}

// submit performs a submission-style POST and classifies the answer. The
// returned error is non-nil only for request-building failures; everything
// the authority (or the network) does comes back inside Result.
func (c *Client) submit(ctx context.Context, env Environment, token, path string, payload interface{}, timeout time.Duration) (*Result, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.config.BaseURL(env) + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable by definition.
		return &Result{
			Outcome:     OutcomeTransient,
			Description: err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{
			Outcome:     OutcomeTransient,
			Description: err.Error(),
			HTTPStatus:  resp.StatusCode,
		}, nil
	}

	return classify(resp.StatusCode, body), nil
}

// classify maps an HTTP status plus reception envelope to an Outcome.
func classify(statusCode int, body []byte) *Result {
	result := &Result{
		HTTPStatus: statusCode,
		RawBody:    truncate(string(body), 2000),
	}

	var envelope receptionResponse
	parsed := json.Unmarshal(body, &envelope) == nil
	if parsed {
		result.Stamp = envelope.SelloRecibido
		result.Code = envelope.CodigoMsg
		result.Description = envelope.DescripcionMsg
		result.Observations = envelope.Observaciones
		result.ProcessedAt = envelope.FhProcesamiento
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		result.Outcome = OutcomeTokenExpired
	case statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError:
		result.Outcome = OutcomeTransient
	case parsed && envelope.Estado == estadoProcessed:
		result.Outcome = OutcomeAccepted
	case parsed && envelope.Estado == estadoRejected:
		result.Outcome = OutcomeRejected
	default:
		// Anything the authority did not commit to is treated as retryable.
		result.Outcome = OutcomeTransient
		if result.Description == "" {
			result.Description = fmt.Sprintf("unclassified response, status %d", statusCode)
		}
	}

	return result
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
