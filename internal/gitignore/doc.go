// Package gitignore matches paths against gitignore-style patterns, per
// the syntax documented at https://git-scm.com/docs/gitignore: wildcards
// (*, ?, **), character classes, rooted patterns (/build), directory-only
// patterns (build/), and negations (!keep.log), with optional per-subtree
// scoping for nested ignore files.
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	if m.Match("error.log", false) {
//		// ignored
//	}
//
// The directory walker uses this to honor a repository's .gitignore
// during indexing. Matching is safe for concurrent readers.
package gitignore
