package op_service

import "strings"

// Release metadata, set at link time with -ldflags "-X".
var (
	Version   = "v0.0.0"
	GitCommit = ""
	GitDate   = ""
	Meta      = "dev"
)

// BuildInfo identifies a binary build.
type BuildInfo struct {
	Version   string
	GitCommit string
	GitDate   string
	Meta      string
}

// CurrentBuild returns the link-time build metadata.
func CurrentBuild() BuildInfo {
	return BuildInfo{Version: Version, GitCommit: GitCommit, GitDate: GitDate, Meta: Meta}
}

// String joins the non-empty parts with dashes. Commits are shortened to eight characters.
func (b BuildInfo) String() string {
	commit := b.GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	parts := []string{b.Version}
	for _, p := range []string{commit, b.GitDate, b.Meta} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

func FormatVersion(version string, gitCommit string, gitDate string, meta string) string {
	return BuildInfo{Version: version, GitCommit: gitCommit, GitDate: gitDate, Meta: meta}.String()
}
