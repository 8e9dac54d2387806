package archive

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultNamePattern picks the last path segment of the entry URL as the
// archive name.
const DefaultNamePattern = `^.+/([^/]+)/?$`

var reDigits = regexp.MustCompile(`(\d+)`)

// NameOptions controls how the archive filename is derived from the entry
// URL when the caller gives no explicit destination.
type NameOptions struct {
	// Pattern is a regexp with one capture group applied to the URL.
	// Empty means DefaultNamePattern.
	Pattern string

	// Number narrows the captured name to the first run of digits in it,
	// so "chapter-042-extra" names the archive after "042".
	Number bool

	// Padding left-pads the final name with zeros to this width.
	Padding int
}

// NameFromURL derives "<name>.cbz" from the entry URL. The regexp chain
// follows the same sequential-capture scheme the CLI exposes: apply
// Pattern, then optionally the digit pattern, each narrowing the value to
// its first capture group.
func NameFromURL(rawURL string, opts NameOptions) (string, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultNamePattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("name pattern: %w", err)
	}

	chain := []*regexp.Regexp{re}
	if opts.Number {
		chain = append(chain, reDigits)
	}

	name := strings.TrimSuffix(rawURL, "/")
	for _, r := range chain {
		m := r.FindStringSubmatch(name)
		if m == nil || len(m) < 2 {
			return "", fmt.Errorf("name pattern %q did not match %q", r.String(), rawURL)
		}
		name = m[1]
	}

	if opts.Padding > 0 && len(name) < opts.Padding {
		name = strings.Repeat("0", opts.Padding-len(name)) + name
	}

	return name + ".cbz", nil
}
