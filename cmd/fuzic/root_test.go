package cmd

import (
	"bytes"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdRun(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	rootCmdRun(&cobra.Command{}, []string{})

	output := buf.String()
	assert.Contains(t, output, "Use 'fuzic serve' to start the web API")
	assert.Contains(t, output, "Use 'fuzic login' then 'fuzic merge'")
}

func TestRootCmdPreRun(t *testing.T) {
	tests := []struct {
		name     string
		debug    bool
		expected log.Level
	}{
		{name: "debug false", debug: false, expected: log.InfoLevel},
		{name: "debug true", debug: true, expected: log.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			origDebug := debug
			defer func() {
				debug = origDebug
				log.SetLevel(log.InfoLevel)
			}()

			debug = tt.debug
			rootCmdPreRun(&cobra.Command{}, []string{})

			assert.Equal(t, tt.expected, log.GetLevel())
			assert.Equal(t, 3000, conf.Server.Port)
		})
	}
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetFormatter(&log.TextFormatter{})

	configureLogging("json", false)
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	configureLogging("text", false)
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}

func TestInit(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "d", flag.Shorthand)
	assert.Equal(t, "Enable debug-level logging", flag.Usage)

	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	for _, expected := range []string{"serve", "login", "merge", "playlists", "man", "version"} {
		assert.True(t, names[expected], "%s subcommand should be present", expected)
	}
}
