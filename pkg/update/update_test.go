package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/simkjels/datumhub-cli/pkg/cache"
	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/fetch"
	"github.com/simkjels/datumhub-cli/pkg/model"
	"github.com/simkjels/datumhub-cli/pkg/pull"
	"github.com/simkjels/datumhub-cli/pkg/registry"
)

func sha256Token(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// testScanner wires a scanner over a local registry, a temp cache, and
// an HTTP file server.
func testScanner(t *testing.T, files map[string][]byte) (*Scanner, *registry.Local, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[filepath.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)

	c := cache.New(t.TempDir())
	reg := registry.NewLocal(t.TempDir())
	s := &Scanner{
		Cache:    c,
		Registry: reg,
		Puller: &pull.Puller{
			Cache:    c,
			Fetcher:  fetch.New(fetch.WithHTTPClient(srv.Client())),
			DestRoot: t.TempDir(),
			Printer:  console.New(io.Discard, io.Discard, console.FormatPlain, true, false),
		},
	}
	return s, reg, srv
}

func publish(t *testing.T, reg *registry.Local, srv *httptest.Server, id, version, filename string, content []byte) {
	t.Helper()
	pkg := &model.DataPackage{
		ID:      id,
		Version: version,
		Title:   "Test " + id,
		Publisher: model.PublisherInfo{
			Name: "Test Publisher",
		},
		Sources: []model.Source{{
			URL:      srv.URL + "/" + filename,
			Format:   "csv",
			Checksum: sha256Token(content),
		}},
	}
	if err := reg.Publish(context.Background(), pkg, false); err != nil {
		t.Fatalf("Publish(%s@%s): %v", id, version, err)
	}
}

// seedCache fakes a previously pulled version by writing a file
// directly into the cache tree.
func seedCache(t *testing.T, c *cache.Cache, id, version string) {
	t.Helper()
	if err := c.EnsureVersionDir(id, version); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.FilePath(id, version, "data.csv"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPlan(t *testing.T) {
	content := []byte("v2 content")
	s, reg, srv := testScanner(t, map[string][]byte{"data.csv": content})
	ctx := context.Background()

	publish(t, reg, srv, "pub/ns/stale", "1.0.0", "data.csv", content)
	publish(t, reg, srv, "pub/ns/stale", "2.0.0", "data.csv", content)
	publish(t, reg, srv, "pub/ns/current", "1.0.0", "data.csv", content)

	seedCache(t, s.Cache, "pub/ns/stale", "1.0.0")
	seedCache(t, s.Cache, "pub/ns/current", "1.0.0")
	seedCache(t, s.Cache, "pub/ns/orphan", "1.0.0")

	ids, err := s.CachedIDs()
	if err != nil {
		t.Fatal(err)
	}
	candidates, err := s.Plan(ctx, ids, false)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// The orphan has no registry entry and is skipped without error.
	if len(candidates) != 2 {
		t.Fatalf("Plan returned %d candidates, want 2", len(candidates))
	}
	byID := map[string]Candidate{}
	for _, c := range candidates {
		byID[c.ID] = c
	}

	stale := byID["pub/ns/stale"]
	if !stale.Stale || stale.Current != "1.0.0" || stale.Latest != "2.0.0" {
		t.Errorf("stale candidate = %+v, want stale 1.0.0 -> 2.0.0", stale)
	}
	current := byID["pub/ns/current"]
	if current.Stale {
		t.Errorf("up-to-date candidate flagged stale: %+v", current)
	}
}

func TestPlanForce(t *testing.T) {
	content := []byte("content")
	s, reg, srv := testScanner(t, map[string][]byte{"data.csv": content})

	publish(t, reg, srv, "pub/ns/ds", "1.0.0", "data.csv", content)
	seedCache(t, s.Cache, "pub/ns/ds", "1.0.0")

	candidates, err := s.Plan(context.Background(), []string{"pub/ns/ds"}, true)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(candidates) != 1 || !candidates[0].Stale {
		t.Errorf("force Plan = %+v, want one stale candidate", candidates)
	}
}

func TestApply(t *testing.T) {
	goodContent := []byte("new version content")
	s, reg, srv := testScanner(t, map[string][]byte{"good.csv": goodContent})
	ctx := context.Background()

	publish(t, reg, srv, "pub/ns/good", "2.0.0", "good.csv", goodContent)
	// The bad dataset's source 404s, so its pull must fail.
	publish(t, reg, srv, "pub/ns/bad", "2.0.0", "missing.csv", []byte("never served"))

	seedCache(t, s.Cache, "pub/ns/good", "1.0.0")
	seedCache(t, s.Cache, "pub/ns/bad", "1.0.0")

	candidates, err := s.Plan(ctx, []string{"pub/ns/bad", "pub/ns/good"}, false)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	outcomes := s.Apply(ctx, candidates, pull.Options{})
	if len(outcomes) != 2 {
		t.Fatalf("Apply returned %d outcomes, want 2", len(outcomes))
	}

	byID := map[string]Outcome{}
	for _, o := range outcomes {
		byID[o.ID] = o
	}
	if err := byID["pub/ns/good"].Err; err != nil {
		t.Errorf("good dataset failed: %v", err)
	}
	if byID["pub/ns/bad"].Err == nil {
		t.Error("bad dataset reported success; one failure must not stop the batch")
	}

	// The good dataset's new version is now cached.
	versions, err := s.Cache.Versions("pub/ns/good")
	if err != nil {
		t.Fatal(err)
	}
	if !containsVersion(versions, "2.0.0") {
		t.Errorf("cache versions after Apply = %v, want 2.0.0 present", versions)
	}
}

func TestApplySkipsFresh(t *testing.T) {
	content := []byte("content")
	s, reg, srv := testScanner(t, map[string][]byte{"data.csv": content})
	ctx := context.Background()

	publish(t, reg, srv, "pub/ns/ds", "1.0.0", "data.csv", content)
	seedCache(t, s.Cache, "pub/ns/ds", "1.0.0")

	candidates, err := s.Plan(ctx, []string{"pub/ns/ds"}, false)
	if err != nil {
		t.Fatal(err)
	}
	outcomes := s.Apply(ctx, candidates, pull.Options{})
	if len(outcomes) != 0 {
		t.Errorf("Apply pulled %d fresh datasets, want 0", len(outcomes))
	}
}

func containsVersion(versions []string, v string) bool {
	for _, have := range versions {
		if have == v {
			return true
		}
	}
	return false
}
