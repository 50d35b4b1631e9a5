package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"assetledger/internal/config"

	"github.com/stretchr/testify/assert"
)

func setSweepEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvStorageDriver, "sqlite")
	t.Setenv(config.EnvSQLitePath, filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv(config.EnvBlobDriver, "none")
	t.Setenv(config.EnvRedisURL, "")
	t.Setenv(config.EnvLogLevel, "info")
}

func TestRun_SweepsAndExitsZero(t *testing.T) {
	setSweepEnv(t)
	var stderr bytes.Buffer

	assert.Equal(t, 0, run(&stderr))
	assert.Contains(t, stderr.String(), "overdue sweep completed")
}

func TestRun_ConfigError(t *testing.T) {
	setSweepEnv(t)
	t.Setenv(config.EnvStorageDriver, "mongo")
	var stderr bytes.Buffer

	assert.Equal(t, 2, run(&stderr))
	assert.Contains(t, stderr.String(), "unknown storage driver")
}

func TestMain_UsesExitFunc(t *testing.T) {
	setSweepEnv(t)
	t.Setenv(config.EnvReusabilityThreshold, "500")
	original := exitFunc
	t.Cleanup(func() { exitFunc = original })

	var code int
	exitFunc = func(c int) { code = c }
	main()
	assert.Equal(t, 2, code)
}
