package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/require"
)

func TestExtractRequiresPaths(t *testing.T) {
	cmd := &extractCmd{inputPaths: pathList{t.TempDir()}}
	require.Equal(t, subcommands.ExitUsageError, cmd.Execute(context.Background(), nil))

	cmd = &extractCmd{outputPath: t.TempDir()}
	require.Equal(t, subcommands.ExitUsageError, cmd.Execute(context.Background(), nil))
}

func TestExtractDryRunFromConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "mapprep.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("dry_run: true\n"), 0o644))

	cmd := &extractCmd{inputPaths: pathList{t.TempDir()}, configPath: configPath}
	require.Equal(t, subcommands.ExitSuccess, cmd.Execute(context.Background(), nil))
}
