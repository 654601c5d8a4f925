// Package identity maps file paths, file URIs and in-text link targets to the
// canonical (name, kind) key that identifies a note across the vault.
package identity

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// Kind classifies a note. The set is closed.
type Kind uint8

const (
	Note Kind = iota
	Article
	List
	Index
	Dump
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{Note, Article, List, Index, Dump}

// extToKind maps file extensions (without the dot) to kinds. Article files use
// the abbreviated "art" suffix.
var extToKind = map[string]Kind{
	"note":  Note,
	"art":   Article,
	"list":  List,
	"index": Index,
	"dump":  Dump,
}

// keywordToKind maps the parenthesized link keyword to a kind. Both spellings
// of Article are accepted so a link can mirror either the keyword or the
// file extension.
var keywordToKind = map[string]Kind{
	"note":    Note,
	"article": Article,
	"art":     Article,
	"list":    List,
	"index":   Index,
	"dump":    Dump,
}

var kindExt = [...]string{"note", "art", "list", "index", "dump"}
var kindKeyword = [...]string{"note", "article", "list", "index", "dump"}

// Extension returns the file extension (without the dot) used for k.
func (k Kind) Extension() string {
	if int(k) < len(kindExt) {
		return kindExt[k]
	}
	return ""
}

// Keyword returns the canonical link keyword for k.
func (k Kind) Keyword() string {
	if int(k) < len(kindKeyword) {
		return kindKeyword[k]
	}
	return ""
}

func (k Kind) String() string {
	if kw := k.Keyword(); kw != "" {
		return kw
	}
	return "unknown"
}

// KindFromExtension returns the kind for a file extension. A leading dot is
// tolerated. Matching is exact.
func KindFromExtension(ext string) (Kind, bool) {
	k, ok := extToKind[strings.TrimPrefix(ext, ".")]
	return k, ok
}

// KindFromKeyword returns the kind named by a link keyword.
func KindFromKeyword(keyword string) (Kind, bool) {
	k, ok := keywordToKind[strings.ToLower(strings.TrimSpace(keyword))]
	return k, ok
}

// MarshalText encodes the kind as its link keyword.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindKeyword) {
		return nil, fmt.Errorf("identity: invalid kind %d", k)
	}
	return []byte(k.Keyword()), nil
}

// UnmarshalText accepts any link keyword.
func (k *Kind) UnmarshalText(b []byte) error {
	kind, ok := KindFromKeyword(string(b))
	if !ok {
		return fmt.Errorf("identity: unknown kind %q", b)
	}
	*k = kind
	return nil
}

// Identity is the primary key of a note.
type Identity struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// String renders the identity the way it would be written as a link target.
func (id Identity) String() string {
	return id.Name + " (" + id.Kind.Keyword() + ")"
}

// Filename reconstructs the on-disk file name for the identity.
func (id Identity) Filename() string {
	return id.Name + "." + id.Kind.Extension()
}

// Compare orders identities by name, then kind.
func Compare(a, b Identity) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	switch {
	case a.Kind < b.Kind:
		return -1
	case a.Kind > b.Kind:
		return 1
	}
	return 0
}

// FromPath derives an identity from a file path. It fails when the extension
// is not a recognized note kind or the file name has no stem.
func FromPath(path string) (Identity, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" {
		return Identity{}, false
	}
	kind, ok := KindFromExtension(ext)
	if !ok {
		return Identity{}, false
	}
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		return Identity{}, false
	}
	return Identity{Name: stem, Kind: kind}, true
}

// FromURI derives an identity from a file URI.
func FromURI(uri string) (Identity, bool) {
	path, ok := PathFromURI(uri)
	if !ok {
		return Identity{}, false
	}
	return FromPath(path)
}

// PathFromURI converts a file URI into a local path. Only the file scheme
// with an empty or localhost authority is accepted. The path is cleaned, so
// "." and ".." segments are resolved lexically.
func PathFromURI(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", false
	}
	path := u.Path
	if path == "" {
		return "", false
	}
	if runtime.GOOS == "windows" {
		// file:///C:/notes/a.note -> C:/notes/a.note
		if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
			path = path[1:]
		}
	}
	return filepath.Clean(filepath.FromSlash(path)), true
}

// ToURI converts a local path into a file URI.
func ToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

// linkTextRe matches "<name>" or "<name> (<keyword>)". The name is lazy so
// whitespace before the parenthesized keyword is not part of it.
var linkTextRe = regexp.MustCompile(`^([\p{L}\p{N}_\-/\\ ?:]+?)\s*(?:\(([^()]*)\))?$`)

// FromLinkText resolves the target written inside a link. An unknown keyword
// inside the parentheses falls back to Note.
func FromLinkText(text string) (Identity, bool) {
	m := linkTextRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Identity{}, false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return Identity{}, false
	}
	kind, ok := KindFromKeyword(m[2])
	if !ok {
		kind = Note
	}
	return Identity{Name: name, Kind: kind}, true
}
