// Package entries implements the chart source for the JSON chart-entries
// generation of the upstream, which requires a bearer credential and
// addresses charts by alias.
package entries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ignite/chart-gateway/internal/chart"
	"github.com/ignite/chart-gateway/internal/config"
	"github.com/ignite/chart-gateway/internal/pkg/httpretry"
	"github.com/ignite/chart-gateway/internal/pkg/logger"
)

const sourceName = "entries"

// DefaultBaseURL is the chart-entries service root.
const DefaultBaseURL = "https://charts-spotify-com-service.spotify.com/auth/v0"

// Source fetches chart entries for one (chart, slot, region).
type Source struct {
	baseURL    string
	userAgent  string
	templates  map[chart.Key]string
	httpClient httpretry.HTTPDoer // nil when no credential is configured
}

// tokenError marks a failure to obtain an access token.
type tokenError struct{ err error }

func (e *tokenError) Error() string { return "acquire access token: " + e.err.Error() }
func (e *tokenError) Unwrap() error { return e.err }

type markedTokenSource struct{ src oauth2.TokenSource }

func (m markedTokenSource) Token() (*oauth2.Token, error) {
	tok, err := m.src.Token()
	if err != nil {
		return nil, &tokenError{err: err}
	}
	return tok, nil
}

// New creates an entries Source. Without a credential the Source is still
// built, but every fetch fails with an auth error.
func New(ctx context.Context, cfg config.EntriesConfig, upstream config.UpstreamConfig) (*Source, error) {
	templates := make(map[chart.Key]string, len(cfg.AliasTemplates))
	for _, key := range chart.Keys() {
		tmpl, ok := cfg.AliasTemplates[key.String()]
		if !ok || tmpl == "" {
			return nil, fmt.Errorf("entries: no alias template for %s", key)
		}
		templates[key] = tmpl
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	s := &Source{baseURL: baseURL, userAgent: upstream.UserAgent, templates: templates}

	var ts oauth2.TokenSource
	switch {
	case cfg.UsesClientCredentials():
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: upstream.Timeout()})
		ts = cc.TokenSource(tokenCtx)
		logger.Info("entries source using client credentials", "client_id", cfg.ClientID, "auth_url", cfg.TokenURL)
	case cfg.Token != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		logger.Info("entries source using static token", "credential", "static")
	default:
		logger.Warn("entries source has no credential; chart requests will fail")
		return s, nil
	}

	s.httpClient = httpretry.NewLimitedClient(
		httpretry.NewRetryClient(&http.Client{
			Timeout: upstream.Timeout(),
			Transport: &oauth2.Transport{
				Source: markedTokenSource{src: ts},
				Base:   http.DefaultTransport,
			},
		}, upstream.MaxRetries),
		upstream.RequestsPerSecond, upstream.Burst,
	)
	return s, nil
}

// NewWithClient creates a Source that sends requests through client, which
// is expected to attach the credential itself. A nil client behaves like a
// missing credential.
func NewWithClient(baseURL string, templates map[string]string, client httpretry.HTTPDoer) (*Source, error) {
	byKey := make(map[chart.Key]string, len(templates))
	for _, key := range chart.Keys() {
		tmpl, ok := templates[key.String()]
		if !ok || tmpl == "" {
			return nil, fmt.Errorf("entries: no alias template for %s", key)
		}
		byKey[key] = tmpl
	}
	return &Source{baseURL: strings.TrimRight(baseURL, "/"), templates: byKey, httpClient: client}, nil
}

func (s *Source) Name() string { return sourceName }

// Alias returns the upstream alias of a chart in a region.
func (s *Source) Alias(key chart.Key, region string) string {
	return strings.ReplaceAll(s.templates[key], "{region}", strings.ToLower(region))
}

// FetchOne GETs {base}/charts/{alias}/{date|latest} and flattens the entries.
func (s *Source) FetchOne(ctx context.Context, key chart.Key, slot chart.Slot, region string) ([]chart.Record, error) {
	if s.httpClient == nil {
		return nil, &chart.UpstreamAuthError{
			Source: sourceName,
			Reason: "no access token configured; set CHARTS_UPSTREAM_TOKEN or client credentials",
		}
	}

	label := slot.Label()
	url := fmt.Sprintf("%s/charts/%s/%s", s.baseURL, s.Alias(key, region), label)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var tokErr *tokenError
		if errors.As(err, &tokErr) {
			return nil, &chart.UpstreamAuthError{Source: sourceName, Reason: "could not obtain an access token", Err: tokErr.err}
		}
		return nil, &chart.UpstreamError{Source: sourceName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, &chart.UpstreamAuthError{
			Source: sourceName,
			Reason: "upstream rejected the credential; refresh the access token",
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &chart.UpstreamError{
			Source:     sourceName,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &chart.UpstreamError{Source: sourceName, Err: fmt.Errorf("decode %s: %w", url, err)}
	}

	records := flatten(&payload, label, strings.ToLower(region))
	logger.Debug("fetched chart entries", "chart", key.Name(), "slot", label, "region", region, "records", len(records))
	if len(records) == 0 {
		return nil, nil
	}
	return records, nil
}
