package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/config"
)

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loyalty.yaml")
	content := `
addr: ":9090"
db_path: "/tmp/test-loyalty.db"
jwt_secret: "file-secret"
reconciler_queue: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/tmp/test-loyalty.db", cfg.DBPath)
	assert.Equal(t, "file-secret", cfg.JWTSecret)
	assert.Equal(t, 8, cfg.ReconcilerQueue)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, time.Hour, cfg.TokenTTL)
}

func TestLoad_PartialFile_BackfillsEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loyalty.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`addr: ""`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoad_Garbage_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loyalty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: [\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
