package pull

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/simkjels/datumhub-cli/pkg/cache"
	"github.com/simkjels/datumhub-cli/pkg/console"
	"github.com/simkjels/datumhub-cli/pkg/fetch"
	"github.com/simkjels/datumhub-cli/pkg/model"
)

func sha256Token(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// pullServer serves named files and counts requests per path.
type pullServer struct {
	*httptest.Server
	files map[string][]byte
	calls map[string]*atomic.Int32
}

func newPullServer(t *testing.T, files map[string][]byte) *pullServer {
	t.Helper()
	ps := &pullServer{
		files: files,
		calls: make(map[string]*atomic.Int32, len(files)),
	}
	for name := range files {
		ps.calls[name] = &atomic.Int32{}
	}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		data, ok := ps.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		ps.calls[name].Add(1)
		w.Write(data)
	}))
	t.Cleanup(ps.Server.Close)
	return ps
}

func (ps *pullServer) requests(name string) int32 {
	if c, ok := ps.calls[name]; ok {
		return c.Load()
	}
	return 0
}

func quietPrinter() *console.Printer {
	return console.New(io.Discard, io.Discard, console.FormatPlain, true, false)
}

// newPuller builds a pipeline over temp directories and returns it with
// its destination root.
func newTestPuller(t *testing.T, srv *pullServer) *Puller {
	t.Helper()
	return &Puller{
		Cache:    cache.New(t.TempDir()),
		Fetcher:  fetch.New(fetch.WithHTTPClient(srv.Client())),
		DestRoot: t.TempDir(),
		Printer:  quietPrinter(),
	}
}

func sourceFor(srv *pullServer, name, token string) model.Source {
	return model.Source{
		URL:      srv.URL + "/" + name,
		Format:   "csv",
		Checksum: token,
	}
}

func pullPackage(sources ...model.Source) *model.DataPackage {
	return &model.DataPackage{
		ID:      "pub/ns/ds",
		Version: "1.0.0",
		Title:   "Test dataset",
		Publisher: model.PublisherInfo{
			Name: "Test Publisher",
		},
		Sources: sources,
	}
}

func TestPullFreshDownload(t *testing.T) {
	content := []byte("a,b\n1,2\n")
	srv := newPullServer(t, map[string][]byte{"data.csv": content})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", sha256Token(content)))

	files, err := p.Pull(context.Background(), pkg, Options{})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Pull returned %d files, want 1", len(files))
	}

	got, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("reading destination file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("destination content = %q, want %q", got, content)
	}

	cachePath := p.Cache.FilePath(pkg.ID, pkg.Version, "data.csv")
	if _, err := os.Stat(cachePath); err != nil {
		t.Errorf("cache copy missing after pull: %v", err)
	}
	if want := filepath.Join(p.DestRoot, "ds", "data.csv"); files[0] != want {
		t.Errorf("destination = %q, want %q", files[0], want)
	}
}

func TestPullNoChecksumIsTrusted(t *testing.T) {
	srv := newPullServer(t, map[string][]byte{"data.csv": []byte("anything")})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", ""))

	if _, err := p.Pull(context.Background(), pkg, Options{}); err != nil {
		t.Fatalf("Pull without checksum: %v", err)
	}
}

func TestPullChecksumMismatch(t *testing.T) {
	srv := newPullServer(t, map[string][]byte{"data.csv": []byte("tampered content")})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", sha256Token([]byte("expected content"))))

	_, err := p.Pull(context.Background(), pkg, Options{})
	var integrity *fetch.IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Pull returned %v, want *IntegrityError", err)
	}

	if _, statErr := os.Stat(p.Cache.FilePath(pkg.ID, pkg.Version, "data.csv")); !os.IsNotExist(statErr) {
		t.Error("corrupt file left in cache")
	}
	if _, statErr := os.Stat(filepath.Join(p.DestRoot, "ds", "data.csv")); !os.IsNotExist(statErr) {
		t.Error("corrupt file promoted to destination")
	}
}

func TestPullSecondPullHitsCache(t *testing.T) {
	content := []byte("cached content")
	srv := newPullServer(t, map[string][]byte{"data.csv": content})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", sha256Token(content)))
	ctx := context.Background()

	if _, err := p.Pull(ctx, pkg, Options{}); err != nil {
		t.Fatalf("first Pull: %v", err)
	}
	if n := srv.requests("data.csv"); n != 1 {
		t.Fatalf("first pull made %d requests, want 1", n)
	}

	// Remove the destination so the cache tier must serve the file.
	if err := os.RemoveAll(filepath.Join(p.DestRoot, "ds")); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Pull(ctx, pkg, Options{}); err != nil {
		t.Fatalf("second Pull: %v", err)
	}
	if n := srv.requests("data.csv"); n != 1 {
		t.Errorf("second pull reached the network: %d total requests, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(p.DestRoot, "ds", "data.csv")); err != nil {
		t.Errorf("destination file missing after cache-served pull: %v", err)
	}
}

func TestPullIdempotentWhenDestinationExists(t *testing.T) {
	content := []byte("stable content")
	srv := newPullServer(t, map[string][]byte{"data.csv": content})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", sha256Token(content)))
	ctx := context.Background()

	if _, err := p.Pull(ctx, pkg, Options{}); err != nil {
		t.Fatalf("first Pull: %v", err)
	}
	files, err := p.Pull(ctx, pkg, Options{})
	if err != nil {
		t.Fatalf("second Pull: %v", err)
	}
	if n := srv.requests("data.csv"); n != 1 {
		t.Errorf("repeat pull made network requests: %d total, want 1", n)
	}
	if len(files) != 1 {
		t.Errorf("repeat pull reported %d files, want 1", len(files))
	}
}

func TestPullCorruptCacheRefetches(t *testing.T) {
	content := []byte("good content")
	srv := newPullServer(t, map[string][]byte{"data.csv": content})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", sha256Token(content)))
	ctx := context.Background()

	if _, err := p.Pull(ctx, pkg, Options{}); err != nil {
		t.Fatalf("first Pull: %v", err)
	}

	// Corrupt the cache copy and drop the destination.
	cachePath := p.Cache.FilePath(pkg.ID, pkg.Version, "data.csv")
	if err := os.WriteFile(cachePath, []byte("bit rot"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(p.DestRoot, "ds")); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Pull(ctx, pkg, Options{}); err != nil {
		t.Fatalf("Pull over corrupt cache: %v", err)
	}
	if n := srv.requests("data.csv"); n != 2 {
		t.Errorf("corrupt cache entry was not re-fetched: %d requests, want 2", n)
	}
	got, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Error("cache copy not repaired after re-fetch")
	}
}

func TestPullForceBypassesCacheAndDestination(t *testing.T) {
	content := []byte("forced content")
	srv := newPullServer(t, map[string][]byte{"data.csv": content})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", sha256Token(content)))
	ctx := context.Background()

	if _, err := p.Pull(ctx, pkg, Options{}); err != nil {
		t.Fatalf("first Pull: %v", err)
	}
	if _, err := p.Pull(ctx, pkg, Options{Force: true}); err != nil {
		t.Fatalf("forced Pull: %v", err)
	}
	if n := srv.requests("data.csv"); n != 2 {
		t.Errorf("forced pull made %d total requests, want 2", n)
	}
}

func TestPullAllOrNothing(t *testing.T) {
	good := []byte("good file")
	bad := []byte("bad file")
	srv := newPullServer(t, map[string][]byte{
		"good.csv": good,
		"bad.csv":  bad,
	})
	p := newTestPuller(t, srv)
	pkg := pullPackage(
		sourceFor(srv, "good.csv", sha256Token(good)),
		sourceFor(srv, "bad.csv", sha256Token([]byte("something else"))),
	)

	_, err := p.Pull(context.Background(), pkg, Options{})
	if err == nil {
		t.Fatal("Pull succeeded despite a failing source")
	}

	destDir := filepath.Join(p.DestRoot, "ds")
	if _, statErr := os.Stat(filepath.Join(destDir, "good.csv")); !os.IsNotExist(statErr) {
		t.Error("partial result committed: good.csv present in destination")
	}
	if _, statErr := os.Stat(destDir); !os.IsNotExist(statErr) {
		t.Error("destination directory created despite failed pull")
	}
}

func TestPullCommitFailureLeavesNoPartialSet(t *testing.T) {
	first := []byte("first file")
	second := []byte("second file")
	srv := newPullServer(t, map[string][]byte{
		"a.csv": first,
		"b.csv": second,
	})
	p := newTestPuller(t, srv)
	pkg := pullPackage(
		sourceFor(srv, "a.csv", sha256Token(first)),
		sourceFor(srv, "b.csv", sha256Token(second)),
	)

	// Block the second file's landing spot with a directory so the
	// commit fails after the first file has already been promoted into
	// its partial name.
	destDir := filepath.Join(p.DestRoot, "ds")
	if err := os.MkdirAll(filepath.Join(destDir, "b.csv.partial"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := p.Pull(context.Background(), pkg, Options{})
	if err == nil {
		t.Fatal("Pull succeeded despite a blocked commit")
	}

	for _, name := range []string{"a.csv", "b.csv", "a.csv.partial"} {
		if _, statErr := os.Stat(filepath.Join(destDir, name)); !os.IsNotExist(statErr) {
			t.Errorf("commit failure left %s behind in destination", name)
		}
	}
}

func TestPullStagingCleanedUpOnFailure(t *testing.T) {
	srv := newPullServer(t, map[string][]byte{"data.csv": []byte("content")})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", sha256Token([]byte("other"))))

	p.Pull(context.Background(), pkg, Options{})

	staging := filepath.Join(p.Cache.Root(), ".staging")
	entries, err := os.ReadDir(staging)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging area not cleaned up: %d entries remain", len(entries))
	}
}

func TestPullParallelMatchesSerial(t *testing.T) {
	files := map[string][]byte{
		"one.csv":   []byte("first file"),
		"two.csv":   []byte("second file"),
		"three.csv": []byte("third file"),
		"four.csv":  []byte("fourth file"),
		"five.csv":  []byte("fifth file"),
	}
	srv := newPullServer(t, files)

	var sources []model.Source
	for _, name := range []string{"one.csv", "two.csv", "three.csv", "four.csv", "five.csv"} {
		sources = append(sources, sourceFor(srv, name, sha256Token(files[name])))
	}

	for name, parallelism := range map[string]int{"serial": 1, "parallel": 4} {
		t.Run(name, func(t *testing.T) {
			p := newTestPuller(t, srv)
			pkg := pullPackage(sources...)

			got, err := p.Pull(context.Background(), pkg, Options{Parallelism: parallelism})
			if err != nil {
				t.Fatalf("Pull: %v", err)
			}
			if len(got) != len(sources) {
				t.Fatalf("Pull returned %d files, want %d", len(got), len(sources))
			}
			// Results stay in declared source order regardless of mode.
			for i, name := range []string{"one.csv", "two.csv", "three.csv", "four.csv", "five.csv"} {
				if filepath.Base(got[i]) != name {
					t.Errorf("result[%d] = %s, want %s", i, filepath.Base(got[i]), name)
				}
				data, err := os.ReadFile(got[i])
				if err != nil {
					t.Fatalf("reading %s: %v", got[i], err)
				}
				if string(data) != string(files[name]) {
					t.Errorf("%s content mismatch", name)
				}
			}
		})
	}
}

func TestPullExplicitDest(t *testing.T) {
	content := []byte("dest content")
	srv := newPullServer(t, map[string][]byte{"data.csv": content})
	p := newTestPuller(t, srv)
	pkg := pullPackage(sourceFor(srv, "data.csv", sha256Token(content)))

	dest := filepath.Join(t.TempDir(), "elsewhere")
	files, err := p.Pull(context.Background(), pkg, Options{Dest: dest})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if want := filepath.Join(dest, "data.csv"); files[0] != want {
		t.Errorf("destination = %q, want %q", files[0], want)
	}
	if _, err := os.Stat(files[0]); err != nil {
		t.Errorf("file missing at explicit destination: %v", err)
	}
}

func TestSourceFilename(t *testing.T) {
	tests := map[string]struct {
		url    string
		format string
		index  int
		want   string
	}{
		"plain path": {
			url:  "https://example.org/data/oslo.csv",
			want: "oslo.csv",
		},
		"trailing slashes": {
			url:  "https://example.org/data/oslo.csv///",
			want: "oslo.csv",
		},
		"query string ignored": {
			url:  "https://example.org/download/data.parquet?token=abc",
			want: "data.parquet",
		},
		"no path": {
			url:    "https://example.org",
			format: "csv",
			index:  2,
			want:   "source_2.csv",
		},
		"root path": {
			url:    "https://example.org/",
			format: "json",
			index:  0,
			want:   "source_0.json",
		},
		"dot segment": {
			url:    "https://example.org/data/.",
			format: "csv",
			index:  1,
			want:   "source_1.csv",
		},
		"parent segment": {
			url:    "https://example.org/data/..",
			format: "csv",
			index:  3,
			want:   "source_3.csv",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			src := model.Source{URL: tc.url, Format: tc.format}
			if got := SourceFilename(src, tc.index); got != tc.want {
				t.Errorf("SourceFilename(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestClampParallelism(t *testing.T) {
	tests := map[string]struct {
		in   int
		want int
	}{
		"zero":        {0, 1},
		"negative":    {-3, 1},
		"one":         {1, 1},
		"in range":    {4, 4},
		"upper bound": {8, 8},
		"above range": {64, 8},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := clampParallelism(tc.in); got != tc.want {
				t.Errorf("clampParallelism(%d) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}
