// Package version holds the version string of the explorer.
package version

// Flag contains extra info about the version, ex. "rc1". It is empty for
// releases.
const Flag = ""

var (
	// Version is The full version string
	Version = "0.1.0"

	// GitCommit is set with --ldflags "-X github.com/intervalue1/intervalue-explorer-1.0-testnet/src/version.GitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	Version = full(Version, Flag, GitCommit)
}

func full(version, flag, commit string) string {
	if flag != "" {
		version += "-" + flag
	}
	if len(commit) >= 8 {
		version += "-" + commit[:8]
	}
	return version
}
