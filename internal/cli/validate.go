// Package cli holds the terminal-facing helpers of media-detect.
package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Source is what the user asked to check: either a local file or a URL the
// downloader understands.
type Source struct {
	Path string
	URL  string
}

// IsRemote reports whether the source must be downloaded.
func (s Source) IsRemote() bool { return s.URL != "" }

func (s Source) String() string {
	if s.IsRemote() {
		return s.URL
	}
	return s.Path
}

// ResolveSource classifies arg. http, https and s3 URLs are returned as
// is; anything else must be an existing regular file and is made absolute.
func ResolveSource(arg string) (Source, error) {
	if arg == "" {
		return Source{}, errors.New("no file or URL given")
	}

	if u, err := url.Parse(arg); err == nil && u.Host != "" {
		switch u.Scheme {
		case "http", "https", "s3":
			return Source{URL: arg}, nil
		}
	}

	info, err := os.Stat(arg)
	if err != nil {
		if os.IsNotExist(err) {
			return Source{}, fmt.Errorf("file not found: %s", arg)
		}
		return Source{}, fmt.Errorf("failed to access %s: %w", arg, err)
	}
	if !info.Mode().IsRegular() {
		return Source{}, fmt.Errorf("not a regular file: %s", arg)
	}

	absPath, err := filepath.Abs(arg)
	if err == nil {
		arg = absPath
	}
	return Source{Path: arg}, nil
}
