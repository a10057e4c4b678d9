package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCmd(t *testing.T) {
	c := newVersionCmd()
	assert.Equal(t, "version", c.Use)
	assert.NotEmpty(t, c.Short)
	assert.NotNil(t, c.Run)
}

func TestVersionCommandExecution_NoGatewayRunning(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = "1.2.3-test"

	c := newVersionCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.Run(c, []string{})

	assert.Contains(t, buf.String(), "muster-gateway version 1.2.3-test")
	assert.Contains(t, buf.String(), "Gateway:")
}

func TestVersionCommandHelp(t *testing.T) {
	c := newVersionCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{"--help"})
	require.NoError(t, c.Execute())

	assert.Contains(t, buf.String(), "version")
}
