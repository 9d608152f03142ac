package config

import (
	"fmt"
	"strings"
)

// RepoPath locates a file or directory inside a GitHub repository.
type RepoPath struct {
	Repo string // owner/repo
	Path string
}

// ParseRepoPath splits owner/repo/path/to/target into repository and path.
func ParseRepoPath(full string) (RepoPath, error) {
	full = strings.Trim(strings.TrimSpace(full), "/")
	parts := strings.SplitN(full, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || strings.Trim(parts[2], "/") == "" {
		return RepoPath{}, fmt.Errorf("invalid GitHub path %q, expected owner/repo/path", full)
	}
	return RepoPath{Repo: parts[0] + "/" + parts[1], Path: strings.Trim(parts[2], "/")}, nil
}

// MustRepoPath is ParseRepoPath for values already checked by Validate; empty input yields a zero RepoPath.
func MustRepoPath(full string) RepoPath {
	if strings.TrimSpace(full) == "" {
		return RepoPath{}
	}
	rp, err := ParseRepoPath(full)
	if err != nil {
		panic(err)
	}
	return rp
}

// Configured reports whether the path was set.
func (r RepoPath) Configured() bool { return r.Path != "" }
