package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "dev (commit: none, built: unknown)", String())

	Version, Commit, Date = "v1.2.0", "abc123", "2026-01-02"
	t.Cleanup(func() { Version, Commit, Date = "dev", "none", "unknown" })
	assert.Equal(t, "v1.2.0 (commit: abc123, built: 2026-01-02)", String())
}
