package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/rappel-anniv/internal/config"
)

// TestConstants_Integrity ensures critical constants are not empty or malformed.
func TestConstants_Integrity(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"AppName", config.AppName},
		{"AppID", config.AppID},
		{"Version", config.Version},
		{"UserAgent", config.UserAgent},
		{"ICalVersion", config.ICalVersion},
		{"ICalProdid", config.ICalProdid},
		{"SessionCookieName", config.SessionCookieName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, tt.value, "Critical constant %s should not be empty", tt.name)
		})
	}
}

// TestDefaults_Sanity checks that default values make sense logically.
func TestDefaults_Sanity(t *testing.T) {
	assert.Equal(t, 30, config.DefaultUpcomingDays)
	assert.Equal(t, 2000, config.DefaultLeapYear, "Default leap year must be 2000 for consistency")
	assert.Equal(t, 30*24*time.Hour, config.DefaultSessionTTL)
	assert.Equal(t, 30*time.Second, config.HTTPTimeout)

	require.NoError(t, config.Defaults().Validate())
}

// TestUserAgent_Format ensures the UA string follows the standard format.
func TestUserAgent_Format(t *testing.T) {
	assert.True(t, strings.HasPrefix(config.UserAgent, "Rappel-Anniv/"))
}

// TestTimeoutsAndLimits ensures that operational constraints are reasonable.
func TestTimeoutsAndLimits(t *testing.T) {
	t.Parallel()

	assert.Greater(t, config.HTTPTimeout, 0*time.Second)
	assert.LessOrEqual(t, config.HTTPTimeout, 2*time.Minute)
	assert.Greater(t, config.ShutdownTimeout, 0*time.Second)
	assert.Greater(t, config.MaxRequestBody, 0)
	assert.Less(t, config.MaxRequestBody, config.MaxImportSize)
}

func TestSettings_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rappel.yaml")
	yamlContent := `
addr: ":9000"
language: fr
database:
  driver: postgres
  dsn: postgres://localhost/rappel
session:
  ttl: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), config.FilePermUserRW))

	s := config.Defaults()
	require.NoError(t, s.LoadFile(path))
	assert.Equal(t, ":9000", s.Addr)
	assert.Equal(t, "fr", s.Language)
	assert.Equal(t, config.DriverPostgres, s.Database.Driver)
	assert.Equal(t, 2*time.Hour, s.Session.TTL)

	env := map[string]string{
		config.EnvAddr:         ":9100",
		config.EnvCookieSecure: "true",
	}
	require.NoError(t, s.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, ":9100", s.Addr)
	assert.True(t, s.Session.CookieSecure)

	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--addr", ":9200", "--debug"}))
	require.NoError(t, s.ApplyFlags(fs))
	assert.Equal(t, ":9200", s.Addr, "Explicit flags win over env")
	assert.True(t, s.Debug)
	assert.Equal(t, "fr", s.Language, "Unset flags must not reset file values")

	require.NoError(t, s.Validate())
}

func TestSettings_ApplyEnv_Invalid(t *testing.T) {
	s := config.Defaults()
	err := s.ApplyEnv(func(k string) (string, bool) {
		if k == config.EnvSessionTTL {
			return "forever", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvSessionTTL)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Settings)
	}{
		{"Empty Addr", func(s *config.Settings) { s.Addr = "" }},
		{"Unknown Driver", func(s *config.Settings) { s.Database.Driver = "oracle" }},
		{"Missing DSN", func(s *config.Settings) { s.Database.DSN = "" }},
		{"Unsupported Language", func(s *config.Settings) { s.Language = "de" }},
		{"Zero TTL", func(s *config.Settings) { s.Session.TTL = 0 }},
		{"Admin Without Password", func(s *config.Settings) { s.Admin.Email = "root@example.com" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Defaults()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}

	t.Run("Memory Driver Without DSN", func(t *testing.T) {
		s := config.Defaults()
		s.Database = config.DatabaseSettings{Driver: config.DriverMemory}
		assert.NoError(t, s.Validate())
	})
}

func TestSettings_LoadFile_Missing(t *testing.T) {
	s := config.Defaults()
	err := s.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrConfigRead)
}
