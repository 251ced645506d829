package cli

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/dnstail/internal/config"
)

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", value: "5s", want: 5 * time.Second},
		{name: "milliseconds", value: "500ms", want: 500 * time.Millisecond},
		{name: "garbage", value: "soon", wantErr: true},
		{name: "bare number", value: "5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimeout("resolve-timeout", tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "v1.2.3", formatVersion("v1.2.3"))
}

func TestInitCommand(t *testing.T) {
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	require.NoError(t, initCommand(false))

	cfg, err := config.Load(config.ConfigFileName)
	require.NoError(t, err)
	assert.Equal(t, []string{"pihole1", "pihole2"}, cfg.Hosts)
	assert.Equal(t, "pi", cfg.Username)

	// A second init without --force must refuse to clobber the file.
	err = initCommand(false)
	assert.Error(t, err)

	// With --force it overwrites.
	require.NoError(t, os.WriteFile(config.ConfigFileName, []byte("hosts: [a, b]\n"), 0o644))
	require.NoError(t, initCommand(true))
	cfg, err = config.Load(config.ConfigFileName)
	require.NoError(t, err)
	assert.Equal(t, []string{"pihole1", "pihole2"}, cfg.Hosts)
}
