// Package fetch downloads dataset files over HTTP with streaming digest
// computation. One Fetcher (and its connection pool) is shared by every
// transfer of a pull operation.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/dnscache"
)

const (
	// connectTimeout bounds connection setup: a dead host should fail
	// fast. It is deliberately independent from the transfer timeout so
	// a live-but-slow download is not mistaken for a dead connection.
	connectTimeout = 10 * time.Second

	// transferTimeout bounds one whole transfer, large files included.
	transferTimeout = 5 * time.Minute

	// chunkSize is the streaming buffer size. Memory use per transfer
	// stays constant regardless of file size.
	chunkSize = 64 * 1024
)

// NetworkError wraps a transport-level failure (dial, read, or a
// non-success HTTP status) so callers can distinguish it from integrity
// and user errors when mapping to exit codes.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Fetcher performs HTTP downloads.
type Fetcher struct {
	client *http.Client
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient substitutes the HTTP client, used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New returns a Fetcher whose transport caches DNS lookups and applies
// the connect/transfer timeout split.
func New(opts ...Option) *Fetcher {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: transferTimeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved address for %s", host)
				},
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: connectTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download streams the resource at url into the file at dest in
// chunkSize chunks, feeding a running digest when token is non-empty.
//
// Failure semantics: transport failures and non-2xx statuses return a
// *NetworkError and leave any partially written dest in place for
// inspection. A digest mismatch removes dest and returns an
// *IntegrityError, so a corrupt file never stays on disk posing as valid.
func (f *Fetcher) Download(ctx context.Context, url, dest, token string) error {
	var (
		digest   hash.Hash
		algo     string
		expected string
	)
	if token != "" {
		var err error
		algo, expected, err = ParseChecksum(token)
		if err != nil {
			return err
		}
		digest, err = newHash(algo)
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	var w io.Writer = out
	if digest != nil {
		w = io.MultiWriter(out, digest)
	}

	buf := make([]byte, chunkSize)
	_, copyErr := io.CopyBuffer(w, resp.Body, buf)
	closeErr := out.Close()
	if copyErr != nil {
		return &NetworkError{URL: url, Err: copyErr}
	}
	if closeErr != nil {
		return fmt.Errorf("writing %s: %w", dest, closeErr)
	}

	if digest != nil {
		if err := checkDigest(digest, algo, expected, filepath.Base(dest)); err != nil {
			os.Remove(dest)
			return err
		}
	}
	return nil
}

// Digest streams the resource at url without writing it anywhere,
// returning its sha256 integrity token and byte size. Used when
// registering a source URL in a descriptor, where the content itself is
// not wanted yet.
func (f *Fetcher) Digest(ctx context.Context, url string) (token string, size int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("creating request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, &NetworkError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	digest := sha256.New()
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(digest, resp.Body, buf)
	if err != nil {
		return "", 0, &NetworkError{URL: url, Err: err}
	}
	return "sha256:" + hex.EncodeToString(digest.Sum(nil)), n, nil
}

// ContentLength issues a HEAD request and returns the advertised size,
// or -1 when the server does not report one.
func (f *Fetcher) ContentLength(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1, fmt.Errorf("creating request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return -1, &NetworkError{URL: url, Err: err}
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return -1, &NetworkError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp.ContentLength, nil
}
