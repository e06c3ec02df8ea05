package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the CrowdStrike US-1 API endpoint.
	DefaultBaseURL = "https://api.crowdstrike.com"

	requestTimeout = 30 * time.Second

	// tokenSlack renews the OAuth token this long before it expires so
	// in-flight requests never race expiry.
	tokenSlack = 60 * time.Second
)

// FalconClient implements Client against the CrowdStrike NG-SIEM API using
// OAuth2 client-credentials authentication.
type FalconClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewFalconClient creates a client for the given API credentials. baseURL
// may be empty to use the default endpoint.
func NewFalconClient(clientID, clientSecret, baseURL string, log zerolog.Logger) (*FalconClient, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing API credentials", ErrUnauthorized)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &FalconClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: requestTimeout},
		log:          log,
	}, nil
}

// token returns a valid access token, fetching a new one if the cached token
// is missing or near expiry.
func (c *FalconClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Never include credential material in the error.
		return "", fmt.Errorf("%w: token request rejected", ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: token endpoint returned HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: malformed token response", ErrUnavailable)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUnauthorized)
	}

	c.accessToken = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	c.log.Debug().Int("expires_in", body.ExpiresIn).Msg("oauth token refreshed")
	return c.accessToken, nil
}

// doJSON executes an authenticated request and decodes the response into out
// when out is non-nil. HTTP error statuses map to the package sentinels.
func (c *FalconClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	tok, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return ErrAccessDenied
	case resp.StatusCode == http.StatusNotFound:
		return ErrRepositoryNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent:
		return fmt.Errorf("search API returned HTTP %d", resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed response body", ErrUnavailable)
		}
	}
	return nil
}

func queryJobsPath(repository string) string {
	return "/humio/api/v1/repositories/" + url.PathEscape(repository) + "/queryjobs"
}

// StartSearch submits a query job and returns its id.
func (c *FalconClient) StartSearch(ctx context.Context, repository, queryString, start string, isLive bool) (string, error) {
	payload := map[string]any{
		"queryString": queryString,
		"start":       start,
		"isLive":      isLive,
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, queryJobsPath(repository), payload, &body); err != nil {
		return "", err
	}
	if body.ID == "" {
		return "", fmt.Errorf("%w: no job id in response", ErrUnavailable)
	}

	c.log.Info().
		Str("repository", repository).
		Str("job_id", body.ID).
		Bool("is_live", isLive).
		Msg("search started")
	return body.ID, nil
}

// SearchStatus fetches the current status of a query job. The NG-SIEM API
// reports completion via a done flag; a cancelled job also reads as done.
func (c *FalconClient) SearchStatus(ctx context.Context, repository, jobID string) (*StatusReport, error) {
	var body struct {
		Done     bool             `json:"done"`
		Events   []map[string]any `json:"events"`
		MetaData map[string]any   `json:"metaData"`
	}
	path := queryJobsPath(repository) + "/" + url.PathEscape(jobID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}

	report := &StatusReport{
		State:      StateRunning,
		EventCount: len(body.Events),
		Metadata:   body.MetaData,
	}
	if body.Done {
		report.State = StateDone
		report.Events = body.Events
	}
	return report, nil
}

// StopSearch cancels a query job.
func (c *FalconClient) StopSearch(ctx context.Context, repository, jobID string) error {
	path := queryJobsPath(repository) + "/" + url.PathEscape(jobID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	c.log.Info().Str("repository", repository).Str("job_id", jobID).Msg("search stopped")
	return nil
}
