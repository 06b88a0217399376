package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/server"
)

func TestFlagsApply(t *testing.T) {
	cfg := server.DefaultConfig()
	cmd := &cobra.Command{Use: "t"}
	f := BindServerFlags(cmd, cfg)

	require.NoError(t, cmd.Flags().Parse([]string{
		"--listen", "127.0.0.1:7000",
		"--loops", "4",
		"--framing", "delimiter",
		"--delimiter", "||||",
		"--idle-timeout", "30s",
		"--log-level", "debug",
	}))
	log, err := f.Apply()
	require.NoError(t, err)
	assert.NotNil(t, log)

	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.WorkerLoops)
	assert.Equal(t, api.FramingDelimiter, cfg.Framing)
	assert.Equal(t, [4]byte{'|', '|', '|', '|'}, cfg.Delimiter)
	assert.Equal(t, "debug", cfg.Logger.GetLevel().String())
}

func TestFlagsApplyRejects(t *testing.T) {
	for _, args := range [][]string{
		{"--framing", "morse"},
		{"--framing", "delimiter", "--delimiter", "ab"},
		{"--log-level", "chatty"},
		{"--loops", "0"},
	} {
		cfg := server.DefaultConfig()
		cmd := &cobra.Command{Use: "t"}
		f := BindServerFlags(cmd, cfg)
		require.NoError(t, cmd.Flags().Parse(args))
		_, err := f.Apply()
		assert.Error(t, err, "%v", args)
	}
}
