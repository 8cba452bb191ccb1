package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "1.2.3"
	Commit = "abc1234"
	BuildTime = "2026-01-02T03:04:05Z"

	want := "1.2.3 (abc1234) built 2026-01-02T03:04:05Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestUserAgent(t *testing.T) {
	origVersion := Version
	defer func() { Version = origVersion }()

	Version = "0.4.0"
	got := UserAgent()

	if !strings.HasPrefix(got, "DiscordBot (") {
		t.Errorf("UserAgent() = %q, should start with %q", got, "DiscordBot (")
	}
	if !strings.Contains(got, ProjectURL) {
		t.Errorf("UserAgent() = %q, should contain %q", got, ProjectURL)
	}
	if !strings.HasSuffix(got, ", 0.4.0)") {
		t.Errorf("UserAgent() = %q, should end with version", got)
	}
}
