package main

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "cardscan dev\n", out.String())
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("logging.level", "debug")
	viper.Set("logging.format", "json")
	assert.NoError(t, setupLogging())

	viper.Set("logging.level", "chatty")
	assert.Error(t, setupLogging())

	viper.Set("logging.level", "info")
	viper.Set("logging.format", "xml")
	assert.Error(t, setupLogging())
}

func TestRootCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"scan", "history", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}
