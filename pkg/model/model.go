// Package model defines the datapackage.json value types shared by the
// registry, cache, and pull pipeline, plus identifier parsing and
// validation.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Each slug: lowercase letters, digits, hyphens; must not start or end
// with a hyphen.
const slugExpr = `[a-z0-9]([a-z0-9-]*[a-z0-9])?`

var (
	idPattern       = regexp.MustCompile(`^` + slugExpr + `/` + slugExpr + `/` + slugExpr + `$`)
	slugPattern     = regexp.MustCompile(`^` + slugExpr + `$`)
	checksumPattern = regexp.MustCompile(`^(sha256|sha512|md5):[a-fA-F0-9]+$`)
)

// CommonFormats are the file extensions recognized as data files when
// discovering sources from a directory listing.
var CommonFormats = map[string]bool{
	"csv": true, "json": true, "parquet": true, "geojson": true,
	"xlsx": true, "xls": true, "tsv": true, "xml": true,
	"zip": true, "gz": true, "bz2": true, "tar": true,
}

// ValidKey reports whether s is a well-formed dataset key of the form
// publisher/namespace/dataset (three slash-separated slugs).
func ValidKey(s string) bool { return idPattern.MatchString(s) }

// ValidSlug reports whether s is a single well-formed slug.
func ValidSlug(s string) bool { return slugPattern.MatchString(s) }

// ValidChecksum reports whether s is a well-formed integrity token
// (<algorithm>:<hex> with algorithm sha256, sha512, or md5).
func ValidChecksum(s string) bool { return checksumPattern.MatchString(s) }

// ParseIdentifier splits "publisher/ns/ds:version" into its key and
// version parts. Only the first colon separates, so a version that
// itself contains colons is preserved whole. Version is empty when
// omitted; callers decide the default meaning ("latest" for pull and
// update, must-specify for unpublish).
func ParseIdentifier(s string) (key, version string) {
	if i := strings.Index(s, ":"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// Source is a single data file within a dataset. It carries no behavior;
// the pull pipeline treats it as an immutable record.
type Source struct {
	URL      string `json:"url"`
	Format   string `json:"format"`
	Size     *int64 `json:"size,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// PublisherInfo is metadata about the dataset's publisher.
type PublisherInfo struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// DataPackage is the datapackage.json schema. Identifiers follow the
// format publisher/namespace/dataset; each segment is a lowercase slug
// of letters, digits, and hyphens.
type DataPackage struct {
	ID          string        `json:"id"`
	Version     string        `json:"version"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	License     string        `json:"license,omitempty"`
	Publisher   PublisherInfo `json:"publisher"`
	Sources     []Source      `json:"sources"`
	Tags        []string      `json:"tags,omitempty"`
	Created     string        `json:"created,omitempty"`
	Updated     string        `json:"updated,omitempty"`
}

// PublisherSlug returns the first segment of the ID.
func (p *DataPackage) PublisherSlug() string { return p.idSegment(0) }

// NamespaceSlug returns the second segment of the ID.
func (p *DataPackage) NamespaceSlug() string { return p.idSegment(1) }

// DatasetSlug returns the third segment of the ID. It is also the
// default destination directory name for a pull.
func (p *DataPackage) DatasetSlug() string { return p.idSegment(2) }

func (p *DataPackage) idSegment(i int) string {
	parts := strings.SplitN(p.ID, "/", 3)
	if i >= len(parts) {
		return ""
	}
	return parts[i]
}

// FieldError describes one schema violation found by Problems.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Problems checks the package against the datapackage schema and
// returns every violation found, in field order. An empty result means
// the package is valid.
func (p *DataPackage) Problems() []FieldError {
	var errs []FieldError
	add := func(field, message string) {
		errs = append(errs, FieldError{Field: field, Message: message})
	}

	if !ValidKey(p.ID) {
		add("id", fmt.Sprintf(
			"invalid identifier %q: expected publisher/namespace/dataset "+
				"(three slash-separated slugs of lowercase letters, digits, and hyphens)", p.ID))
	}
	if strings.TrimSpace(p.Version) == "" {
		add("version", "version cannot be empty")
	}
	if strings.TrimSpace(p.Title) == "" {
		add("title", "title cannot be empty")
	}
	if strings.TrimSpace(p.Publisher.Name) == "" {
		add("publisher.name", "publisher name cannot be empty")
	}
	if p.Publisher.URL != "" && !isHTTPURL(p.Publisher.URL) {
		add("publisher.url", "publisher URL must start with http:// or https://")
	}

	if len(p.Sources) == 0 {
		add("sources", "at least one source is required")
	}
	for i, src := range p.Sources {
		field := func(name string) string { return fmt.Sprintf("sources[%d].%s", i, name) }
		if !isHTTPURL(src.URL) {
			add(field("url"), "URL must start with http:// or https://")
		}
		if strings.TrimSpace(src.Format) == "" {
			add(field("format"), "format cannot be empty")
		}
		if src.Size != nil && *src.Size < 0 {
			add(field("size"), "size must be a non-negative integer")
		}
		if src.Checksum != "" && !ValidChecksum(src.Checksum) {
			add(field("checksum"), "expected sha256:<hex>, sha512:<hex>, or md5:<hex>")
		}
	}

	return errs
}

// Validate returns an error describing the first schema violation, or
// nil when the package is valid.
func (p *DataPackage) Validate() error {
	if errs := p.Problems(); len(errs) > 0 {
		return fmt.Errorf("%s: %s", errs[0].Field, errs[0].Message)
	}
	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
