package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	assert.NoError(t, err)
	assert.Equal(t, "DEV", cfg.Environment)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, 50, cfg.Pipeline.MaxQuestions)
	assert.Equal(t, 0.8, cfg.Pipeline.HighConfidence)
	assert.Equal(t, 0.5, cfg.Pipeline.MediumConfidence)
}

func TestLoadConfig_FromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
environment: PROD
db:
  host: db.internal
  name: rfp
pipeline:
  top_k: 8
auth:
  issuer: https://idp.example.com/
  client_id: rfp-pilot
`
	assert.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "PROD", cfg.Environment)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "rfp", cfg.DB.Name)
	assert.Equal(t, 8, cfg.Pipeline.TopK)
	assert.Equal(t, 0.8, cfg.Pipeline.HighConfidence, "unset keys keep defaults")
	assert.Equal(t, "https://idp.example.com", cfg.Auth.Issuer, "trailing slash removed")
}

func TestNormalizeIssuer(t *testing.T) {
	assert.Equal(t, "https://idp.example.com", normalizeIssuer(" https://idp.example.com/ "))
	assert.Equal(t, "https://idp.example.com/oauth2", normalizeIssuer("https://idp.example.com/oauth2"))
	assert.Equal(t, "", normalizeIssuer(""))
}
