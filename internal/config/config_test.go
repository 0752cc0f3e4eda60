package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  user: app
  database: reimbursements
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "be-reimbursements", cfg.Service.Name)
	assert.Equal(t, 30*time.Second, cfg.SMTP.SendTimeout)
	assert.Equal(t, "notifications.reimbursements", cfg.NATS.SubjectPrefix)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	path := writeConfig(t, `
database:
  user: app
  database: reimbursements
  password: ${TEST_DB_PASSWORD}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsMissingDatabase(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 4000
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "database user")
}

func TestValidateRejectsSMTPWithoutFrom(t *testing.T) {
	path := writeConfig(t, `
database:
  user: app
  database: reimbursements
smtp:
  host: smtp.example.com
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "from_address")
}

func TestValidateRejectsBadPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 99999
database:
  user: app
  database: reimbursements
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "port")
}
