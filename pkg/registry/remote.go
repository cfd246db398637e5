package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/simkjels/datumhub-cli/pkg/config"
	"github.com/simkjels/datumhub-cli/pkg/model"
)

const (
	metadataTimeout = 10 * time.Second
	maxRetries      = 4
	listLimit       = 500
)

// Remote talks to an HTTP registry. Metadata calls are retried with
// exponential backoff on 429 and 5xx responses; the pull pipeline
// itself never retries, so this is the only retry policy in the tool.
type Remote struct {
	url    string
	host   string
	cfg    *config.Config
	client *http.Client
}

// NewRemote returns a remote registry client for baseURL, reading
// credentials for its host from cfg.
func NewRemote(baseURL string, cfg *config.Config) *Remote {
	trimmed := strings.TrimSuffix(baseURL, "/")
	host := trimmed
	if u, err := url.Parse(trimmed); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Remote{
		url:    trimmed,
		host:   host,
		cfg:    cfg,
		client: &http.Client{Timeout: metadataTimeout},
	}
}

func (r *Remote) authorize(req *http.Request) {
	if r.cfg == nil {
		return
	}
	if token := r.cfg.Token(r.host); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// retryableStatus reports whether a response status is worth retrying.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// do performs one request with retries, returning the final response.
// Transport failures after all retries surface as *UnreachableError.
func (r *Remote) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var resp *http.Response
	operation := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, r.url+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		r.authorize(req)

		resp, err = r.client.Do(req) //nolint:bodyclose // closed by callers
		if err != nil {
			return &UnreachableError{URL: r.url, Err: err}
		}
		if retryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return fmt.Errorf("registry returned %s", resp.Status)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var unreachable *UnreachableError
		if !errors.As(err, &unreachable) {
			err = &UnreachableError{URL: r.url, Err: err}
		}
		return nil, err
	}
	return resp, nil
}

// getJSON performs a GET and decodes a 200 response into v. A 404
// returns ErrNotFound.
func (r *Remote) getJSON(ctx context.Context, path string, v any) error {
	resp, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("decoding registry response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	default:
		return &UnreachableError{URL: r.url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}

func (r *Remote) Get(ctx context.Context, id, version string) (*model.DataPackage, error) {
	pkg := &model.DataPackage{}
	if err := r.getJSON(ctx, fmt.Sprintf("/api/v1/packages/%s/%s", id, version), pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (r *Remote) Latest(ctx context.Context, id string) (*model.DataPackage, error) {
	pkg := &model.DataPackage{}
	if err := r.getJSON(ctx, fmt.Sprintf("/api/v1/packages/%s/latest", id), pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (r *Remote) List(ctx context.Context, query string) ([]*model.DataPackage, error) {
	path := fmt.Sprintf("/api/v1/packages?limit=%d", listLimit)
	if query != "" {
		path += "&q=" + url.QueryEscape(query)
	}
	var payload struct {
		Items []*model.DataPackage `json:"items"`
	}
	if err := r.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (r *Remote) Suggest(ctx context.Context, key string) []string {
	pkgs, err := r.List(ctx, "")
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(pkgs))
	all := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		if _, ok := seen[p.ID]; !ok {
			seen[p.ID] = struct{}{}
			all = append(all, p.ID)
		}
	}
	return closeMatches(key, all)
}

func (r *Remote) Publish(ctx context.Context, pkg *model.DataPackage, overwrite bool) error {
	path := "/api/v1/packages"
	if overwrite {
		path += "?force=true"
	}
	body, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", pkg.ID, err)
	}

	resp, err := r.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s@%s: %w", pkg.ID, pkg.Version, ErrExists)
	default:
		return &UnreachableError{URL: r.url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}

func (r *Remote) Unpublish(ctx context.Context, id, version string) (bool, error) {
	resp, err := r.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/packages/%s/%s", id, version), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, ErrUnauthorized
	default:
		return false, &UnreachableError{URL: r.url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}

var _ Registry = &Remote{}

// RegisterAccount creates a new account at the registry's auth
// endpoint. A taken username and rejected input come back as plain
// errors carrying the server's detail; transport failures surface as
// *UnreachableError.
func RegisterAccount(ctx context.Context, baseURL, username, password string) error {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: metadataTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(baseURL, "/")+"/api/auth/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &UnreachableError{URL: baseURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("username %q is already taken", username)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Detail != "" {
			return fmt.Errorf("%s", payload.Detail)
		}
		return fmt.Errorf("registry rejected the registration input")
	default:
		return &UnreachableError{URL: baseURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}

// FetchToken exchanges a username and password for an API token at the
// registry's auth endpoint.
func FetchToken(ctx context.Context, baseURL, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: metadataTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(baseURL, "/")+"/api/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", &UnreachableError{URL: baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("authentication failed: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &UnreachableError{URL: baseURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding auth response: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("registry returned an empty token")
	}
	return payload.Token, nil
}
