package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/mirrorsync/internal/config"
	"github.com/bamsammich/mirrorsync/internal/filter"
)

func TestWorkspacePath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		arg  string
		want string
	}{
		{"", ""},
		{root, ""},
		{filepath.Join(root, "a"), "/a"},
		{filepath.Join(root, "a", "b.txt"), "/a/b.txt"},
	}
	for _, tt := range tests {
		got, err := workspacePath(root, tt.arg)
		require.NoError(t, err, tt.arg)
		assert.Equal(t, tt.want, got, tt.arg)
	}

	_, err := workspacePath(root, filepath.Dir(root))
	assert.Error(t, err)
}

func testCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	f := cmd.Flags()
	f.StringVar(&opts.bwLimitStr, "bwlimit", "", "")
	f.StringVar(&opts.sshKeyFile, "ssh-key", "", "")
	f.IntVar(&opts.sshPort, "ssh-port", 0, "")
	return cmd
}

func TestLoadSettingsPrecedence(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Dir(config.Path()), 0o755))
	require.NoError(t, os.WriteFile(config.Path(), []byte(`
[defaults]
bwlimit = "1M"
ssh_key = "/keys/default"
ssh_port = 2200
journal = false
`), 0o644))

	root := t.TempDir()
	require.NoError(t, config.SaveWorkspace(root, config.Workspace{
		Remote: config.RemoteConfig{Host: "example.com", Root: "/srv", KeyFile: "/keys/ws"},
		Sync:   config.SyncConfig{BWLimit: "2M"},
	}))

	opts := &globalOpts{}
	cmd := testCmd(opts)
	require.NoError(t, cmd.Flags().Parse([]string{"--bwlimit", "3M"}))

	s, err := opts.loadSettings(cmd, root)
	require.NoError(t, err)
	assert.Equal(t, int64(3<<20), s.bwLimit)
	assert.Equal(t, "/keys/ws", s.sshKey)
	assert.Equal(t, 2200, s.sshPort)
	assert.False(t, s.journal)

	loc := s.location()
	assert.Equal(t, "example.com", loc.Host)
	assert.Equal(t, "/srv", remoteRoot(loc))
}

func TestBuildFilterIgnoreFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".syncignore"), []byte("*.log\n"), 0o644))

	chain, err := buildFilter(nil, root, config.SyncConfig{
		Ignore:     []string{"build/"},
		IgnoreFile: ".syncignore",
	})
	require.NoError(t, err)
	assert.True(t, chain.Ignored("debug.log", false))
	assert.True(t, chain.Ignored("build", true))
	assert.False(t, chain.Ignored("main.go", false))
}

func TestBuildFilterCommandLineFirst(t *testing.T) {
	chain := filter.NewChain()
	require.NoError(t, (&filterFlag{chain: chain, include: true}).Set("keep.log"))
	require.NoError(t, (&filterFlag{chain: chain}).Set("*.tmp"))

	chain, err := buildFilter(chain, t.TempDir(), config.SyncConfig{Ignore: []string{"*.log"}})
	require.NoError(t, err)
	assert.False(t, chain.Ignored("keep.log", false))
	assert.True(t, chain.Ignored("other.log", false))
	assert.True(t, chain.Ignored("a.tmp", false))
}
