package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simkjels/datumhub-cli/pkg/model"
)

func TestResolveDescriptorForAdd(t *testing.T) {
	root := t.TempDir()
	descriptor := filepath.Join(root, "datapackage.json")
	if err := os.WriteFile(descriptor, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "data", "2024")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("walks up to the nearest descriptor", func(t *testing.T) {
		t.Chdir(nested)
		got, err := resolveDescriptorForAdd("")
		if err != nil {
			t.Fatalf("resolveDescriptorForAdd: %v", err)
		}
		if got != descriptor {
			t.Errorf("resolveDescriptorForAdd = %q, want %q", got, descriptor)
		}
	})

	t.Run("explicit path wins", func(t *testing.T) {
		t.Chdir(nested)
		other := filepath.Join(t.TempDir(), "elsewhere.json")
		if err := os.WriteFile(other, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := resolveDescriptorForAdd(other)
		if err != nil {
			t.Fatalf("resolveDescriptorForAdd: %v", err)
		}
		if got != other {
			t.Errorf("resolveDescriptorForAdd = %q, want %q", got, other)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Chdir(t.TempDir())
		if _, err := resolveDescriptorForAdd(""); err == nil {
			t.Error("resolveDescriptorForAdd succeeded with no descriptor anywhere")
		}
	})
}

func TestWriteDescriptorRoundTrip(t *testing.T) {
	size := int64(128)
	pkg := &model.DataPackage{
		ID:        "met-no/weather/oslo-hourly",
		Version:   "1.0.0",
		Title:     "Oslo hourly weather",
		Publisher: model.PublisherInfo{Name: "MET Norway"},
		Sources: []model.Source{{
			URL:      "https://example.org/oslo.csv",
			Format:   "csv",
			Size:     &size,
			Checksum: "sha256:ab12",
		}},
	}

	for _, name := range []string{"datapackage.json", "datapackage.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := writeDescriptor(path, pkg); err != nil {
				t.Fatalf("writeDescriptor: %v", err)
			}
			got, err := loadDescriptor(path)
			if err != nil {
				t.Fatalf("loadDescriptor: %v", err)
			}
			if got.ID != pkg.ID || len(got.Sources) != 1 || got.Sources[0].Checksum != pkg.Sources[0].Checksum {
				t.Errorf("round trip mangled the descriptor: %+v", got)
			}
		})
	}
}
