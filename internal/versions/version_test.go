package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionInfoWithValues(t *testing.T) {
	t.Parallel()

	t.Run("release values pass through", func(t *testing.T) {
		t.Parallel()

		info := versionInfoWithValues("1.2.3", "abcdef1234567890", "2026-08-30T12:00:00Z")

		assert.Equal(t, "1.2.3", info.Version)
		assert.Equal(t, "abcdef1234567890", info.Commit)
		assert.Equal(t, "2026-08-30 12:00:00 UTC", info.BuildDate)
		assert.Equal(t, runtime.Version(), info.GoVersion)
		assert.Contains(t, info.Platform, runtime.GOOS)
	})

	t.Run("dev version manufactured from commit", func(t *testing.T) {
		t.Parallel()

		info := versionInfoWithValues("dev", "abcdef1234567890", unknownStr)

		assert.Equal(t, "build-abcdef12", info.Version)
	})

	t.Run("unparseable build date kept verbatim", func(t *testing.T) {
		t.Parallel()

		info := versionInfoWithValues("1.0.0", "abc", "yesterday")

		assert.Equal(t, "yesterday", info.BuildDate)
	})
}
