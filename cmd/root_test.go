package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "worker", "process", "resume", "rescore", "leads", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "fieldsnap", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestProcessCommand_Flags(t *testing.T) {
	for _, name := range []string{"location", "notes", "file", "limit", "concurrency"} {
		assert.NotNil(t, processCmd.Flags().Lookup(name), "process command should have --%s flag", name)
	}
	assert.Equal(t, "100", processCmd.Flags().Lookup("limit").DefValue)
}

func TestResumeRescore_AllFlag(t *testing.T) {
	assert.NotNil(t, resumeCmd.Flags().Lookup("all"))
	assert.NotNil(t, rescoreCmd.Flags().Lookup("all"))
}

func TestLeadsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range leadsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "export"} {
		assert.True(t, names[name], "expected leads subcommand %q not found", name)
	}
}
