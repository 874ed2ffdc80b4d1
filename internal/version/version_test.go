package version

import (
	"testing"

	"github.com/fatih/color"
)

func override(t *testing.T, v, commit, msg, date string) {
	t.Helper()
	origV, origC, origM, origD := Version, GitCommit, GitMessage, BuildDate
	t.Cleanup(func() { Version, GitCommit, GitMessage, BuildDate = origV, origC, origM, origD })
	Version, GitCommit, GitMessage, BuildDate = v, commit, msg, date
}

func TestColoredKeepsComponents(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	cases := []struct{ version, want string }{
		{"1.2.3", "1.2.3"},
		{"0.1.0-dev", "0.1.0-dev"},
		{"weird", "weird"},
	}
	for _, tc := range cases {
		override(t, tc.version, "", "", "")
		if got := Colored(); got != tc.want {
			t.Errorf("Colored(%q) = %q", tc.version, got)
		}
	}
}

func TestProducer(t *testing.T) {
	override(t, "1.2.3", "", "", "")
	if got := Producer(); got != "linkgen 1.2.3" {
		t.Errorf("Producer = %q", got)
	}
	override(t, "1.2.3", "abc123def456789", "", "")
	if got := Producer(); got != "linkgen 1.2.3 (abc123def456)" {
		t.Errorf("Producer = %q", got)
	}
}
