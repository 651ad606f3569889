package geoip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopResolver(t *testing.T) {
	var r Resolver = NoopResolver{}
	assert.Equal(t, UnknownCountry, r.Country("203.0.113.10"))
}

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"203.0.113.10": "FR", "198.51.100.7": "BR"}

	assert.Equal(t, "FR", r.Country("203.0.113.10"))
	assert.Equal(t, "BR", r.Country("198.51.100.7"))
	assert.Equal(t, UnknownCountry, r.Country("192.0.2.1"))
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geoip.yaml")
	require.NoError(t, os.WriteFile(path, []byte("203.0.113.10: FR\n198.51.100.7: BR\n"), 0o644))

	r, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "FR", r.Country("203.0.113.10"))
	assert.Equal(t, UnknownCountry, r.Country("10.0.0.1"))
}

func TestLoadTableErrors(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a\n- map\n"), 0o644))
	_, err = LoadTable(path)
	assert.Error(t, err)
}
