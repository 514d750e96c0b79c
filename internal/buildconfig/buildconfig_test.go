package buildconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, "dev", Version())
	assert.Equal(t, "unknown", Commit())
	assert.Equal(t, map[string]string{"version": "dev", "commit": "unknown"}, VersionInfo())
	assert.Equal(t, "tenancy/dev (unknown)", UserAgent())
}
