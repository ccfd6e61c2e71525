package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/vcf-region-fetch/internal/checksum"
	"github.com/shinji-kodama/vcf-region-fetch/internal/decode"
	"github.com/shinji-kodama/vcf-region-fetch/internal/model"
	"github.com/shinji-kodama/vcf-region-fetch/internal/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vrf.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Parallel)
	assert.Equal(t, "md5", cfg.ChecksumAlgo)
	assert.True(t, cfg.PreserveHeaders)
	assert.Equal(t, ByteSize(1<<20), cfg.BufferSize)
	assert.Equal(t, 10*time.Second, cfg.Timeout.Std())
	assert.Equal(t, ByteSize(0), cfg.MaxRate)
}

func TestLoad_JSONCFile(t *testing.T) {
	path := writeConfig(t, `{
		// mirror is slow; be gentle
		"parallel": 2,
		"out_dir": "filtered",
		"checksum_algo": "sha256",
		"preserve_headers": false, /* headers come from a template */
		"max_rate": "10MiB",
		"buffer_size": 65536,
		"timeout": "30s",
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2, cfg.Parallel)
	assert.Equal(t, "filtered", cfg.OutDir)
	assert.Equal(t, "sha256", cfg.ChecksumAlgo)
	assert.False(t, cfg.PreserveHeaders)
	assert.Equal(t, ByteSize(10<<20), cfg.MaxRate)
	assert.Equal(t, ByteSize(65536), cfg.BufferSize)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Std())
	// Untouched keys keep their defaults.
	assert.Equal(t, "bgzf", cfg.OutputCompression)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitInvalidInput, cliErr.Code)

	_, err = Load(writeConfig(t, `{"paralel": 3}`))
	require.True(t, errors.As(err, &cliErr))
	assert.Contains(t, err.Error(), "paralel")

	_, err = Load(writeConfig(t, `{"max_rate": "fast"}`))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"parallel": 2, "log_level": "warn"}`)
	t.Setenv("VRF_PARALLEL", "8")
	t.Setenv("VRF_MAX_RATE", "1MB")
	t.Setenv("VRF_TIMEOUT", "1m")
	t.Setenv("VRF_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Parallel)
	assert.Equal(t, ByteSize(1<<20), cfg.MaxRate)
	assert.Equal(t, time.Minute, cfg.Timeout.Std())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("VRF_PARALLEL", "many")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VRF_PARALLEL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero parallel", func(c *Config) { c.Parallel = 0 }, "parallel"},
		{"unknown algorithm", func(c *Config) { c.ChecksumAlgo = "crc32" }, "crc32"},
		{"unknown codec", func(c *Config) { c.Codec = "zstd" }, "codec"},
		{"unknown compression", func(c *Config) { c.OutputCompression = "xz" }, "output compression"},
		{"tiny buffer", func(c *Config) { c.BufferSize = 16 }, "buffer_size"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPipeline(t *testing.T) {
	cfg := Default()
	cfg.ChecksumAlgo = "SHA1"
	cfg.OutputCompression = "none"
	cfg.MaxRate = 2048

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, checksum.SHA1, pc.DefaultAlgorithm)
	assert.Equal(t, decode.CodecAuto, pc.Codec)
	assert.Equal(t, pipeline.CompressionNone, pc.OutputCompression)
	assert.True(t, pc.PreserveHeaders)
	require.NotNil(t, pc.Limiter)
	assert.Equal(t, 2048, pc.Limiter.Burst())

	cfg.MaxRate = 0
	pc, err = cfg.Pipeline()
	require.NoError(t, err)
	assert.Nil(t, pc.Limiter)
}

func TestByteSizeFlagValue(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.Set("512KiB"))
	assert.Equal(t, ByteSize(512<<10), b)
	assert.Equal(t, "512KiB", b.String())
	assert.Equal(t, "size", b.Type())
	assert.Error(t, b.Set("lots"))

	var d Duration
	require.NoError(t, d.Set("1m30s"))
	assert.Equal(t, "1m30s", d.String())
}
