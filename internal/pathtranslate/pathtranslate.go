// Package pathtranslate reconciles the flat object-store key space with a
// hierarchical POSIX namespace: trailing-slash directory conventions,
// implicit-directory probing when a directory has no marker object of its
// own, and the header formatting the backend expects for a server-side
// move.
package pathtranslate

import (
	"strings"
)

// Translator converts between filesystem paths and object-store keys for
// one bucket.
type Translator struct {
	bucket string
}

// New creates a Translator for the given bucket name.
func New(bucket string) *Translator {
	return &Translator{bucket: bucket}
}

// IsDirectoryPath reports whether path follows the trailing-slash
// directory convention.
func IsDirectoryPath(path string) bool {
	return strings.HasSuffix(path, "/")
}

// AsDirectory forces the trailing-slash convention onto path, the rule
// MakeDirectory applies before issuing its PUT.
func AsDirectory(path string) string {
	if IsDirectoryPath(path) {
		return path
	}
	return path + "/"
}

// ToKey converts an absolute filesystem path to the object key the
// backend stores it under. The leading slash is stripped; the trailing
// slash, if any, is preserved so the key still marks a directory.
func (t *Translator) ToKey(path string) string {
	return strings.TrimPrefix(path, "/")
}

// ToPath converts an object key back into an absolute filesystem path.
func (t *Translator) ToPath(key string) string {
	if strings.HasPrefix(key, "/") {
		return key
	}
	return "/" + key
}

// MoveSourceHeader formats the header value the backend expects to
// identify the copy source for a server-side move: the bucket and key
// joined with leading slashes, independent of whatever leading slash the
// key itself carries.
func (t *Translator) MoveSourceHeader(path string) string {
	key := strings.TrimPrefix(t.ToKey(path), "/")
	return "/" + t.bucket + "/" + key
}

// ProbeResult describes what an implicit-directory probe found.
type ProbeResult struct {
	// Exists is true if any key or common prefix shares dirPath's prefix.
	Exists bool
}

// ProbeDirectory decides whether dirPath should be treated as an
// implicit directory after its own HEAD request came back KeyNotExist.
// The caller supplies the result of a ListObjects(dirPath, limit=2)
// call; ProbeDirectory applies the "any key or common prefix at all"
// rule without performing the list itself, since that call belongs to
// the backend client.
func ProbeDirectory(keys []string, commonPrefixes []string) ProbeResult {
	return ProbeResult{Exists: len(keys) > 0 || len(commonPrefixes) > 0}
}

// IsMoveToMissingDirectoryQuirk reports whether a move's failure matches
// the quirk where the destination is a directory-style key the backend
// has never materialized: the move driver should retry by creating the
// destination directory and re-attempting the rename locally.
func IsMoveToMissingDirectoryQuirk(dst string, keyNotExist bool) bool {
	return keyNotExist && IsDirectoryPath(dst)
}
