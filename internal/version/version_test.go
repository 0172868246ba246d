package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	t.Cleanup(func() { Version = old })

	info := GetInfo()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, Platform, info.Platform)
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))

	s := info.String()
	assert.Contains(t, s, "Version: v1.2.3")
	assert.Contains(t, s, "Platform: "+Platform)

	assert.Equal(t, "adgate/v1.2.3 ("+Platform+")", UserAgent())
}
