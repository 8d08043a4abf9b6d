package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoDefault(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "apikit")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
	assert.Contains(t, info, runtime.Version())
}

func TestInfoWithCustomValues(t *testing.T) {
	origVersion := Version
	origCommit := Commit
	origDate := Date
	t.Cleanup(func() {
		Version = origVersion
		Commit = origCommit
		Date = origDate
	})

	Version = "1.2.3"
	Commit = "abc1234567890"
	Date = "2026-01-15"

	b := Current()
	assert.Equal(t, "1.2.3", b.Version, "ldflags values win over build info")
	assert.Equal(t, "abc1234567890", b.Commit)

	info := Info()
	assert.Contains(t, info, "1.2.3")
	assert.Contains(t, info, "abc1234") // truncated to 7 chars
	assert.NotContains(t, info, "abc1234567890")
	assert.Contains(t, info, "2026-01-15")
}

func TestBuildString(t *testing.T) {
	b := Build{Version: "0.1.0", Commit: "deadbeefcafe", Date: "2026-10-01", GoVersion: "go1.25", Platform: "linux/amd64"}
	assert.Equal(t, "apikit 0.1.0 (commit: deadbee, built: 2026-10-01, go1.25, linux/amd64)", b.String())
}

func TestShort(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"abcdefghij", "abcdefg"},
		{"abc1234", "abc1234"},
		{"abc", "abc"},
		{"", ""},
		{"12345678", "1234567"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, short(tt.input))
		})
	}
}

func TestDefaultValues(t *testing.T) {
	// Verify default build-time values
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "unknown", Commit)
	assert.Equal(t, "unknown", Date)
}
