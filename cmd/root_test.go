package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_RegistersServeSubcommand(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Use == "serve" {
			found = true
		}
	}
	assert.True(t, found, "serve subcommand must be registered on the root command")
}

func TestServeCmd_HasNoRequiredPositionalArgs(t *testing.T) {
	assert.Nil(t, serveCmd.Args, "serve takes no positional arguments")
}
