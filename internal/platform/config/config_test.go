// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-passport/internal/platform/config"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 bytes

/*
TestLoad_Defaults verifies the compiled-in baseline survives an env-only load.
*/
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 6, cfg.Sms.CodeLength)
	assert.Equal(t, 60, cfg.Sms.SendIntervalSeconds)
	assert.Equal(t, 5, cfg.Login.MaxFailedAttempts)
	assert.Equal(t, "/services", cfg.Zookeeper.RootPath)
	assert.True(t, cfg.IsDevelopment())
}

/*
TestLoad_YAMLFile verifies file values override defaults.
*/
func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	path := filepath.Join(t.TempDir(), "passport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
sms:
  code_len: 4
  send_interval_seconds: 30
zookeeper:
  enabled: true
  hosts: ["zk1:2181", "zk2:2181"]
  service_name: passport-test
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Sms.CodeLength)
	assert.Equal(t, 30, cfg.Sms.SendIntervalSeconds)
	assert.Equal(t, []string{"zk1:2181", "zk2:2181"}, cfg.Zookeeper.Hosts)
	assert.Equal(t, "passport-test", cfg.Zookeeper.ServiceName)
}

/*
TestLoad_EnvOverridesFile verifies environment variables win over the file.
*/
func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("ZK_HOSTS", "zk-a:2181,zk-b:2181")
	t.Setenv("ZK_SERVICE_NAME", "passport-env")

	path := filepath.Join(t.TempDir(), "passport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
zookeeper:
  service_name: passport-file
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, []string{"zk-a:2181", "zk-b:2181"}, cfg.Zookeeper.Hosts)
	assert.Equal(t, "passport-env", cfg.Zookeeper.ServiceName)
}

/*
TestLoad_Validation rejects insecure or non-functional configurations.
*/
func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T)
		errSub string
	}{
		{
			name:   "short_jwt_secret",
			setup:  func(t *testing.T) { t.Setenv("JWT_SECRET", "too-short") },
			errSub: "jwt_secret",
		},
		{
			name: "zookeeper_enabled_without_hosts",
			setup: func(t *testing.T) {
				t.Setenv("JWT_SECRET", testSecret)
				t.Setenv("ZK_ENABLED", "true")
			},
			errSub: "zookeeper.hosts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			_, err := config.Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}
