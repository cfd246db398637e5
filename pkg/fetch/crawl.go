package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/simkjels/datumhub-cli/pkg/model"
)

var (
	s3KeyPattern = regexp.MustCompile(`<Key>([^<]+)</Key>`)
	hrefPattern  = regexp.MustCompile(`(?i)href=["']([^"'?#]+)["']`)
)

// Crawl fetches a directory index at baseURL and returns the data file
// URLs it lists, in listing order. Two index shapes are understood: an
// S3-style XML bucket listing (entries taken from <Key> elements) and a
// plain HTML listing (entries taken from relative href attributes).
// Only files whose extension is a known data format are returned, and a
// non-empty glob pattern further narrows by filename.
func (f *Fetcher) Crawl(ctx context.Context, baseURL, pattern string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", baseURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: baseURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: baseURL, Err: err}
	}

	var candidates [][2]string // name, absolute URL
	text := string(body)
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "xml") || strings.Contains(firstChunk(text), "<ListBucketResult") {
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", baseURL, err)
		}
		for _, m := range s3KeyPattern.FindAllStringSubmatch(text, -1) {
			key := m[1]
			name := key[strings.LastIndex(key, "/")+1:]
			candidates = append(candidates, [2]string{
				name,
				fmt.Sprintf("%s://%s/%s", base.Scheme, base.Host, key),
			})
		}
	} else {
		prefix := strings.TrimSuffix(baseURL, "/") + "/"
		for _, m := range hrefPattern.FindAllStringSubmatch(text, -1) {
			href := m[1]
			if strings.HasPrefix(href, "/") || strings.HasPrefix(href, "http") || strings.HasSuffix(href, "/") {
				continue
			}
			candidates = append(candidates, [2]string{href, prefix + href})
		}
	}

	var results []string
	for _, c := range candidates {
		name, full := c[0], c[1]
		if !model.CommonFormats[FormatOf(name)] {
			continue
		}
		if pattern != "" {
			if ok, err := path.Match(pattern, name); err != nil || !ok {
				continue
			}
		}
		results = append(results, full)
	}
	dedupe(&results)
	return results, nil
}

// FormatOf guesses a data format from the extension of a filename or
// URL path, returning "unknown" when there is none.
func FormatOf(s string) string {
	if u, err := url.Parse(s); err == nil && u.Path != "" {
		s = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(s), "."))
	if ext == "" {
		return "unknown"
	}
	return ext
}

func firstChunk(s string) string {
	if len(s) > 2000 {
		return s[:2000]
	}
	return s
}

// dedupe removes repeated URLs in place, keeping first occurrences.
func dedupe(urls *[]string) {
	seen := make(map[string]struct{}, len(*urls))
	kept := (*urls)[:0]
	for _, u := range *urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		kept = append(kept, u)
	}
	*urls = kept
}
