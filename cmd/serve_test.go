package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewServeCmd(t *testing.T) {
	c := newServeCmd()
	assert.Equal(t, "serve", c.Use)
	assert.NotEmpty(t, c.Long)

	assert.NotNil(t, c.Flags().Lookup("debug"))
	assert.NotNil(t, c.Flags().Lookup("state-path"))
	assert.NotNil(t, c.Flags().Lookup("port"))
	assert.NotNil(t, c.Flags().Lookup("wait"))
}

func TestResolveStatePath_ExplicitValue(t *testing.T) {
	want := filepath.Join(t.TempDir(), "state.yaml")
	assert.Equal(t, want, resolveStatePath(want))
}

func TestResolveStatePath_DefaultsWhenEmpty(t *testing.T) {
	got := resolveStatePath("")
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "muster-gateway")
}
