// Package uriremap translates between editor-relative "source://<relative>"
// URIs and absolute "file://" URIs rooted at the project directory.
package uriremap

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	lspuri "go.lsp.dev/uri"
)

const sourceScheme = "source://"

// RemapError reports that a source:// URI resolved outside the project
// root, almost always a `..` escape or a misbehaving peer.
type RemapError struct {
	URI string
}

func (e *RemapError) Error() string {
	return fmt.Sprintf("uriremap: %q resolves outside the project root", e.URI)
}

// Root is a project root directory, guaranteed to be an absolute file://
// URL with a trailing slash.
type Root struct {
	base string // e.g. "file:///proj/", always trailing-slash
	path string // e.g. "/proj/", always trailing-slash
}

// NewRoot validates dirURL as a file:// directory URL and returns a Root.
func NewRoot(dirURL string) (*Root, error) {
	u, err := url.Parse(dirURL)
	if err != nil {
		return nil, fmt.Errorf("uriremap: invalid root URL %q: %w", dirURL, err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("uriremap: root URL %q must have scheme file", dirURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	base := dirURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Root{base: base, path: u.Path}, nil
}

// NewRootFromDirectory builds a Root from a local filesystem directory path;
// the entrypoint passes the process's working directory.
func NewRootFromDirectory(dir string) (*Root, error) {
	u := lspuri.File(dir)
	return NewRoot(string(u) + "/")
}

// remap inspects a single URI value and rewrites it if it is a source://
// URI (resolved against the root) or a file:// URI that is a descendant of
// the root (rewritten back to source://). Any other URI is returned
// unchanged with changed=false.
func (r *Root) remap(uri string) (result string, changed bool, err error) {
	switch {
	case strings.HasPrefix(uri, sourceScheme):
		rel := strings.TrimPrefix(uri, sourceScheme)
		resolved, err := r.toFile(rel)
		if err != nil {
			return "", false, &RemapError{URI: uri}
		}
		return resolved, true, nil

	case strings.HasPrefix(uri, "file://"):
		if rel, ok := r.toSource(uri); ok {
			return sourceScheme + rel, true, nil
		}
		return uri, false, nil

	default:
		return uri, false, nil
	}
}

// toFile resolves a source-relative path against the root, rejecting any
// path that escapes it via `..`. The path is cleaned unrooted: cleaning
// "/"+rel instead would fold a leading ".." into "/" and hide the escape.
func (r *Root) toFile(rel string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(rel, "/"))
	if cleaned == "." {
		cleaned = ""
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("escapes root")
	}
	return r.base + cleaned, nil
}

// ResolveRelative joins rel onto rootDir the way toFile joins a
// source:// path onto a Root, rejecting any `..` escape. It is used by
// the sync-mode file endpoint, which takes a project-relative path
// straight from a query parameter rather than a source:// URI.
func ResolveRelative(rootDir, rel string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(filepath.ToSlash(rel), "/"))
	if cleaned == "." {
		return "", fmt.Errorf("uriremap: empty relative path")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("uriremap: %q escapes root", rel)
	}
	return filepath.Join(rootDir, filepath.FromSlash(cleaned)), nil
}

// toSource rewrites a file:// URI back to a source:// URI if it is a
// descendant of the root.
func (r *Root) toSource(fileURI string) (string, bool) {
	u, err := url.Parse(fileURI)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	p := u.Path
	if !strings.HasPrefix(p, r.path) {
		return "", false
	}
	return strings.TrimPrefix(p, r.path), true
}
