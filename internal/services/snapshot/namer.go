// Package snapshot provides the per-branch database dump and restore
// operations and the on-disk naming scheme for dump files.
package snapshot

import (
	"path/filepath"
	"regexp"
)

// unsafeBranchChars matches every byte that may not appear in a dump file
// name. Anything outside ASCII alphanumerics plus dot, hyphen and underscore
// becomes an underscore, so exotic branch names ("feature/foo bar!") always
// map to a single safe path segment.
var unsafeBranchChars = regexp.MustCompile(`[^0-9A-Za-z._-]`)

// SanitizeBranch replaces unsafe characters in a branch name with '_'.
// Idempotent: sanitizing an already-sanitized name is a no-op.
func SanitizeBranch(branch string) string {
	return unsafeBranchChars.ReplaceAllString(branch, "_")
}

// DumpFileNamer maps (database, branch) to a deterministic dump file path.
// Existence of that path is the "dump exists" predicate; there is no index.
type DumpFileNamer struct {
	Dir string
}

// Path returns {dir}/{database}-{sanitizedBranch}, with no extension. The
// same inputs always yield the same path so a later invocation finds what an
// earlier one wrote.
func (n DumpFileNamer) Path(database, branch string) string {
	return filepath.Join(n.Dir, database+"-"+SanitizeBranch(branch))
}
