package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/tartampluch/rappel-anniv/internal/auth"
	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"github.com/tartampluch/rappel-anniv/internal/engine"
	"github.com/tartampluch/rappel-anniv/internal/i18n"
	"github.com/tartampluch/rappel-anniv/internal/metrics"
	"github.com/tartampluch/rappel-anniv/internal/secrets"
	"github.com/tartampluch/rappel-anniv/internal/server"
	"github.com/tartampluch/rappel-anniv/internal/service"
	"github.com/tartampluch/rappel-anniv/internal/storage"
)

// main delegates to runMain so that deferred calls (closing the log file,
// the store) run before os.Exit.
func main() {
	os.Exit(runMain(os.Args[1:]))
}

func runMain(args []string) int {
	fs := config.NewFlagSet(config.AppName)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return config.ExitCodeSuccess
		}
		return config.ExitCodeError
	}

	if v, _ := fs.GetBool(config.FlagVersion); v {
		printVersion()
		return config.ExitCodeSuccess
	}

	settings, err := loadSettings(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.ExitCodeError
	}

	logCloser := setupLogging(settings)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close()
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	if err := run(ctx, settings); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// loadSettings layers defaults, the YAML file, the environment and flags,
// then resolves keyring references.
func loadSettings(fs *pflag.FlagSet) (config.Settings, error) {
	s := config.Defaults()

	path, _ := fs.GetString(config.FlagConfig)
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	if path != "" {
		if err := s.LoadFile(path); err != nil {
			return s, err
		}
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return s, err
	}
	if err := s.ApplyFlags(fs); err != nil {
		return s, err
	}
	if err := secrets.ResolveSettings(&s); err != nil {
		return s, err
	}
	return s, s.Validate()
}

// run wires every dependency and blocks until ctx is cancelled.
func run(ctx context.Context, s config.Settings) error {
	store, err := storage.Open(ctx, s.Database)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	clock := engine.RealClock{}
	sessions, closeSessions, err := openSessions(ctx, s, clock)
	if err != nil {
		return err
	}
	defer closeSessions()

	tr, err := i18n.New(s.Language)
	if err != nil {
		return err
	}
	m := metrics.New()

	svc := service.New(service.Deps{
		Store:      store,
		Sessions:   sessions,
		Translator: tr,
		Clock:      clock,
		Metrics:    m,
	})

	if s.Admin.Email != "" {
		creds := domain.Credentials{Email: s.Admin.Email, Password: s.Admin.Password}
		if _, err := svc.EnsureAdmin(ctx, creds); err != nil {
			return fmt.Errorf("%s: %w", config.ErrAdminBootstrap, err)
		}
	}

	limiter := auth.NewLoginLimiter(clock, config.LoginRatePerMinute, config.LoginRateBurst)
	go limiter.Run(ctx, config.LimiterSweepEvery, config.LimiterIdleTTL)

	srv := server.New(server.Options{
		Addr:         s.Addr,
		Service:      svc,
		Auth:         &auth.Authenticator{Sessions: sessions, Users: store},
		Translator:   tr,
		Metrics:      m,
		Limiter:      limiter,
		CookieSecure: s.Session.CookieSecure,
	})
	return srv.Start(ctx)
}

// openSessions picks Redis when a URL is configured, memory otherwise.
func openSessions(ctx context.Context, s config.Settings, clock engine.Clock) (auth.SessionStore, func(), error) {
	log := slog.With(config.LogKeyComponent, config.CompSessions)
	if s.Redis.URL == "" {
		log.Info(config.MsgSessionsReady, config.LogKeyDriver, config.DriverMemory)
		return auth.NewMemorySessionStore(clock, s.Session.TTL), func() {}, nil
	}

	client, err := auth.NewRedisClient(ctx, s.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	log.Info(config.MsgSessionsReady, config.LogKeyDriver, "redis")
	return auth.NewRedisSessionStore(client, clock, s.Session.TTL), func() { _ = client.Close() }, nil
}

func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging writes JSON logs to stdout and, when configured, to a file.
func setupLogging(s config.Settings) io.Closer {
	writers := []io.Writer{os.Stdout}
	var logFile *os.File

	if s.LogFile != "" {
		f, err := os.OpenFile(s.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, s.LogFile, err)
		}
	}

	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: s.Debug,
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts)))

	if logFile == nil {
		return nil
	}
	return logFile
}
