package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "absolute", in: "/etc/keys/sa.json", want: "/etc/keys/sa.json"},
		{name: "relative", in: "keys/sa.json", want: filepath.Join(wd, "keys/sa.json")},
		{name: "home", in: "~/keys/sa.json", want: filepath.Join(home, "keys/sa.json")},
		{name: "redundant separators", in: "/etc//keys/./sa.json", want: "/etc/keys/sa.json"},
		{name: "traversal", in: "../secrets/sa.json", wantErr: true},
		{name: "nested traversal", in: "/etc/keys/../../root/sa.json", wantErr: true},
		{name: "empty", in: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanPathAllowsDotsInNames(t *testing.T) {
	got, err := CleanPath("/keys/my..key.json")
	require.NoError(t, err)
	assert.Equal(t, "/keys/my..key.json", got)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = ExpandHome("~other/file")
	require.NoError(t, err)
	assert.Equal(t, "~other/file", got)
}
