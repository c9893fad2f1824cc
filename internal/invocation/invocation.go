// Package invocation turns raw process arguments and deep-link URLs into
// typed Invocations. Parsing never fails: malformed input yields Empty.
package invocation

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tinyimage/tinyimage/internal/constants"
)

// CompressFlag marks a context-menu invocation on the command line.
const CompressFlag = "--compress"

// ImageExtensions is the allow-list of file extensions TinyImage accepts.
var ImageExtensions = []string{"png", "jpg", "jpeg", "webp"}

// Kind identifies what an invocation asks for.
type Kind int

const (
	// Empty carries no files. Re-invoking the app brings it to the front.
	Empty Kind = iota
	// FilesToOpen adds files to the UI list without compressing.
	FilesToOpen
	// FilesToCompressSilently compresses in the background with no UI.
	FilesToCompressSilently
	// FilesToCompressForeground shows the UI and compresses immediately.
	FilesToCompressForeground
)

func (k Kind) String() string {
	switch k {
	case FilesToOpen:
		return "open"
	case FilesToCompressSilently:
		return "compress-silent"
	case FilesToCompressForeground:
		return "compress-foreground"
	default:
		return "empty"
	}
}

// Invocation is one parsed request. Paths is empty iff Kind is Empty.
type Invocation struct {
	Kind  Kind
	Paths []string
}

// IsEmpty reports whether the invocation carries no files.
func (inv Invocation) IsEmpty() bool {
	return inv.Kind == Empty || len(inv.Paths) == 0
}

func build(kind Kind, paths []string) Invocation {
	if len(paths) == 0 {
		return Invocation{Kind: Empty}
	}
	return Invocation{Kind: kind, Paths: paths}
}

// ParseArgv parses argv with the program path already stripped.
// The --compress flag may appear anywhere. Other tokens are kept when their
// extension is on the allow-list; existence is not checked.
func ParseArgv(tokens []string) Invocation {
	compress := false
	rest := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == CompressFlag {
			compress = true
			continue
		}
		rest = append(rest, tok)
	}

	paths := FilterImagePaths(rest)
	if compress {
		return build(FilesToCompressSilently, paths)
	}
	return build(FilesToOpen, paths)
}

// HasCompressFlag reports whether argv contains --compress.
func HasCompressFlag(tokens []string) bool {
	for _, tok := range tokens {
		if tok == CompressFlag {
			return true
		}
	}
	return false
}

// ParseURL parses a file:// URL or a tinyimage:// deep link.
//
//	file:///Users/me/photo.png                      -> FilesToOpen
//	tinyimage://compress?file=%2Fa.png&file=b.jpg   -> FilesToCompressForeground
//	tinyimage://compress?file=%2Fa.png&background=1 -> FilesToCompressSilently
func ParseURL(raw string) Invocation {
	if isFileURL(raw) {
		p, ok := fileURLPath(raw)
		if !ok {
			return Invocation{Kind: Empty}
		}
		return build(FilesToOpen, FilterImagePaths([]string{p}))
	}

	q := strings.IndexByte(raw, '?')
	if q < 0 {
		return Invocation{Kind: Empty}
	}

	var files []string
	background := false
	for _, param := range strings.Split(raw[q+1:], "&") {
		if encoded, ok := strings.CutPrefix(param, "file="); ok {
			if decoded := PercentDecode(encoded); decoded != "" {
				files = append(files, decoded)
			}
			continue
		}
		if param == "background=1" {
			background = true
		}
	}

	paths := FilterImagePaths(files)
	if background {
		return build(FilesToCompressSilently, paths)
	}
	return build(FilesToCompressForeground, paths)
}

// Parse handles argv that may carry deep links. Windows and Linux deliver
// registered-scheme URLs as plain arguments, so the first URL token wins
// over ordinary path parsing.
func Parse(tokens []string) Invocation {
	for _, tok := range tokens {
		if IsURL(tok) {
			return ParseURL(tok)
		}
	}
	return ParseArgv(tokens)
}

// IsURL reports whether tok is a file:// or tinyimage:// URL.
func IsURL(tok string) bool {
	return isFileURL(tok) || hasScheme(tok, constants.URLScheme)
}

func isFileURL(s string) bool {
	return hasScheme(s, "file")
}

func hasScheme(s, scheme string) bool {
	prefix := scheme + "://"
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// fileURLPath converts a file:// URL into a local path.
func fileURLPath(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}
	p := u.Path
	if runtime.GOOS == "windows" {
		// file:///C:/dir/a.png has Path "/C:/dir/a.png"
		if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
			p = p[1:]
		}
		if u.Host != "" && u.Host != "localhost" {
			p = "//" + u.Host + p
		}
	}
	return filepath.FromSlash(p), true
}

// FilterImagePaths keeps, in order, the paths whose extension is on the
// allow-list. The comparison is case-insensitive.
func FilterImagePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if IsImagePath(p) {
			out = append(out, p)
		}
	}
	return out
}

// IsImagePath reports whether p ends in an allowed image extension.
func IsImagePath(p string) bool {
	lower := strings.ToLower(p)
	for _, ext := range ImageExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

// PercentDecode decodes %XX escapes and turns '+' into a space.
// Malformed escapes are kept literally, and invalid UTF-8 in the decoded
// bytes is replaced with U+FFFD.
func PercentDecode(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '%' && i+2 < len(s):
			h, okH := unhex(s[i+1])
			l, okL := unhex(s[i+2])
			if okH && okL {
				out = append(out, h<<4|l)
				i += 2
				continue
			}
			out = append(out, c)
		case c == '+':
			out = append(out, ' ')
		default:
			out = append(out, c)
		}
	}
	return strings.ToValidUTF8(string(out), "\uFFFD")
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
