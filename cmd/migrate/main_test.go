package main

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/migrations"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args    []string
		cmd     string
		version int
		wantErr bool
	}{
		{args: nil, cmd: "up"},
		{args: []string{"up"}, cmd: "up"},
		{args: []string{"down"}, cmd: "down"},
		{args: []string{"version"}, cmd: "version"},
		{args: []string{"force", "2"}, cmd: "force", version: 2},
		{args: []string{"force"}, wantErr: true},
		{args: []string{"force", "two"}, wantErr: true},
		{args: []string{"sideways"}, wantErr: true},
		{args: []string{"up", "extra"}, wantErr: true},
	}
	for _, tc := range tests {
		cmd, version, err := parseArgs(tc.args)
		if tc.wantErr {
			assert.Error(t, err, "%v", tc.args)
			continue
		}
		require.NoError(t, err, "%v", tc.args)
		assert.Equal(t, tc.cmd, cmd)
		assert.Equal(t, tc.version, version)
	}
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	err := run(nil, "", logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations.FS, "*.down.sql")
	require.NoError(t, err)
	assert.Len(t, ups, 3)
	assert.Equal(t, len(ups), len(downs))
}
