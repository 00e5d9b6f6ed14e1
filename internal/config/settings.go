package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration of the server.
//
// Values are layered: Defaults, then the optional YAML file, then RAPPEL_*
// environment variables, then command-line flags that were explicitly set.
type Settings struct {
	Addr     string           `yaml:"addr"`
	Language string           `yaml:"language"`
	LogFile  string           `yaml:"log_file"`
	Debug    bool             `yaml:"debug"`
	Database DatabaseSettings `yaml:"database"`
	Redis    RedisSettings    `yaml:"redis"`
	Session  SessionSettings  `yaml:"session"`
	Admin    AdminSettings    `yaml:"admin"`
}

// DatabaseSettings selects the storage backend.
type DatabaseSettings struct {
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite and a connection URL for postgres.
	// May be a "keyring:<name>" reference.
	DSN string `yaml:"dsn"`
}

// RedisSettings configures the optional Redis session store.
type RedisSettings struct {
	// URL may be a "keyring:<name>" reference. Empty selects the in-memory store.
	URL string `yaml:"url"`
}

// SessionSettings configures the session cookie.
type SessionSettings struct {
	TTL          time.Duration `yaml:"ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

// AdminSettings describes the account bootstrapped on startup.
type AdminSettings struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Settings {
	return Settings{
		Addr:     DefaultAddr,
		Language: DefaultLanguage,
		Database: DatabaseSettings{
			Driver: DefaultDBDriver,
			DSN:    DefaultDBDSN,
		},
		Session: SessionSettings{
			TTL: DefaultSessionTTL,
		},
	}
}

// LoadFile overlays the YAML file at path onto s. Keys absent from the file
// keep their current values.
func (s *Settings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrConfigRead, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("%s: %w", ErrConfigParse, err)
	}
	return nil
}

// ApplyEnv overlays RAPPEL_* variables found by lookup (usually os.LookupEnv).
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAddr); ok {
		s.Addr = v
	}
	if v, ok := lookup(EnvLanguage); ok {
		s.Language = v
	}
	if v, ok := lookup(EnvDBDriver); ok {
		s.Database.Driver = v
	}
	if v, ok := lookup(EnvDBDSN); ok {
		s.Database.DSN = v
	}
	if v, ok := lookup(EnvRedisURL); ok {
		s.Redis.URL = v
	}
	if v, ok := lookup(EnvAdminEmail); ok {
		s.Admin.Email = v
	}
	if v, ok := lookup(EnvAdminPassword); ok {
		s.Admin.Password = v
	}
	if v, ok := lookup(EnvCookieSecure); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", ErrConfigInvalid, EnvCookieSecure, err)
		}
		s.Session.CookieSecure = b
	}
	if v, ok := lookup(EnvSessionTTL); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", ErrConfigInvalid, EnvSessionTTL, err)
		}
		s.Session.TTL = d
	}
	return nil
}

// NewFlagSet declares every command-line flag understood by the server.
func NewFlagSet(name string) *pflag.FlagSet {
	d := Defaults()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Bool(FlagVersion, false, FlagDescVersion)
	fs.Bool(FlagDebug, false, FlagDescDebug)
	fs.String(FlagConfig, "", FlagDescConfig)
	fs.String(FlagAddr, d.Addr, FlagDescAddr)
	fs.String(FlagDBDriver, d.Database.Driver, FlagDescDBDriver)
	fs.String(FlagDBDSN, d.Database.DSN, FlagDescDBDSN)
	fs.String(FlagRedisURL, "", FlagDescRedisURL)
	fs.String(FlagLanguage, d.Language, FlagDescLanguage)
	fs.String(FlagLogFile, "", FlagDescLogFile)
	fs.Bool(FlagCookieSecure, false, FlagDescCookieSecure)
	fs.String(FlagAdminEmail, "", FlagDescAdminEmail)
	fs.String(FlagAdminPassword, "", FlagDescAdminPassword)
	return fs
}

// ApplyFlags overlays the flags that were explicitly set on the command line.
func (s *Settings) ApplyFlags(fs *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagAddr:          &s.Addr,
		FlagDBDriver:      &s.Database.Driver,
		FlagDBDSN:         &s.Database.DSN,
		FlagRedisURL:      &s.Redis.URL,
		FlagLanguage:      &s.Language,
		FlagLogFile:       &s.LogFile,
		FlagAdminEmail:    &s.Admin.Email,
		FlagAdminPassword: &s.Admin.Password,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	bools := map[string]*bool{
		FlagDebug:        &s.Debug,
		FlagCookieSecure: &s.Session.CookieSecure,
	}
	for name, dst := range bools {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

// Validate reports the first inconsistency in s.
func (s Settings) Validate() error {
	var errs []error
	if s.Addr == "" {
		errs = append(errs, errors.New(ErrAddrRequired))
	}
	switch s.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if s.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database dsn is required for driver %q", s.Database.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("%s: %q", ErrDriverUnknown, s.Database.Driver))
	}
	if !slices.Contains(SupportedLanguages, s.Language) {
		errs = append(errs, fmt.Errorf("unsupported language %q", s.Language))
	}
	if s.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if s.Admin.Email != "" && s.Admin.Password == "" {
		errs = append(errs, errors.New("admin password is required when admin email is set"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", ErrConfigInvalid, err)
	}
	return nil
}
