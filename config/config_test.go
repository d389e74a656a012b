package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults 测试配置文件不存在时使用默认值
func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "tongyi", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Article.GenerateAttempts)
	assert.Equal(t, 600, cfg.Queue.TaskTimeout)
	assert.Equal(t, "info", cfg.Log.Level)

	_, err = os.Stat(path)
	assert.NoError(t, err, "应该写出默认配置文件")
}

// TestLoadFromFile 测试从文件加载并展开环境变量
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
llm:
  api_key: ${STORM_TEST_LLM_KEY}
article:
  generate_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("STORM_TEST_LLM_KEY", "secret-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret-key", cfg.LLM.APIKey)
	assert.Equal(t, 5, cfg.Article.GenerateAttempts)
	assert.Equal(t, "qwen-turbo", cfg.LLM.Model, "未设置的项使用默认值")
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"mode", func(c *Config) { c.Server.Mode = "prod" }},
		{"storage", func(c *Config) { c.Storage.Type = "s3" }},
		{"database", func(c *Config) { c.Database.Type = "postgres" }},
		{"attempts", func(c *Config) { c.Article.GenerateAttempts = 0 }},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invalid := *cfg
			tt.modify(&invalid)
			assert.Error(t, invalid.Validate())
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("STORM_TEST_SECRET", "s3cret")
	assert.Equal(t, "s3cret", expandEnv("${STORM_TEST_SECRET}"))
	assert.Equal(t, "${STORM_TEST_UNSET}", expandEnv("${STORM_TEST_UNSET}"))
	assert.Equal(t, "plain", expandEnv("plain"))
}
