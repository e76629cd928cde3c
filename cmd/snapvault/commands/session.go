package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dyluth/snapvault/internal/config"
	"github.com/dyluth/snapvault/internal/printer"
	"github.com/dyluth/snapvault/internal/telemetry"
	"github.com/dyluth/snapvault/pkg/archive"
	"github.com/dyluth/snapvault/pkg/storage"
	"github.com/dyluth/snapvault/pkg/storage/redisstore"
	"github.com/dyluth/snapvault/pkg/storage/sqlstore"
)

// session holds the connections one command invocation works with.
type session struct {
	cfg     *config.SnapvaultConfig
	out     *printer.Printer
	logger  *slog.Logger
	client  *redisstore.Client
	archive *archive.Archive
	sql     *sqlstore.Store

	shutdownTracing func(context.Context) error
}

// openSession loads the configuration, sets up logging and tracing, and
// connects to Redis. Failures are printed and returned as title-only errors.
func openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()
	out := newPrinter(cmd)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, out.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check %s, or remove it to use the defaults", configPath)},
		)
	}
	if namespaceFlag != "" {
		ns := storage.NormalizeNamespace(namespaceFlag)
		if err := storage.ValidateNamespace(ns); err != nil {
			return nil, out.Error("invalid namespace", err.Error(), nil)
		}
		cfg.Archive.Namespace = ns
	}

	s := &session{
		cfg:    cfg,
		out:    out,
		logger: slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})).With("component", "snapvault"),
	}

	archiveOpts := []archive.Option{archive.WithLogger(s.logger)}
	if traceFlag {
		tp, shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceVersion: version, Writer: cmd.ErrOrStderr()})
		if err != nil {
			return nil, out.Error(
				"tracing setup failed",
				err.Error(),
				[]string{"Re-run without --trace"},
			)
		}
		s.shutdownTracing = shutdown
		archiveOpts = append(archiveOpts, archive.WithTracerProvider(tp))
	}

	s.client, err = redisstore.NewClientFromURL(cfg.Redis.URL, redisstore.Options{
		KeyPrefix: cfg.Redis.KeyPrefix,
		PageSize:  int64(cfg.Cleanup.PageSize),
	})
	if err != nil {
		s.close(ctx)
		return nil, out.ErrorWithContext(
			"invalid Redis URL",
			err.Error(),
			map[string]string{"URL": cfg.Redis.URL},
			[]string{"Use the form redis://[user:password@]host:port/db"},
		)
	}
	if err := s.client.Ping(ctx); err != nil {
		s.close(ctx)
		return nil, out.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"URL": cfg.Redis.URL},
			[]string{
				fmt.Sprintf("Set redis.url in %s", configPath),
				fmt.Sprintf("Or export %s=redis://host:6379/0", config.EnvRedisURL),
			},
		)
	}

	s.archive, err = archive.New(s.client.Objects(), cfg.Archive.Namespace, archiveOpts...)
	if err != nil {
		s.close(ctx)
		return nil, out.Error("failed to open archive", err.Error(), nil)
	}

	return s, nil
}

// openSQL connects the configured SQL row store, if any. Returns nil when
// no database URL is configured.
func (s *session) openSQL(ctx context.Context) (*sqlstore.Store, error) {
	if s.cfg.SQL.DatabaseURL == "" {
		return nil, nil
	}
	st, err := sqlstore.Open(ctx, s.cfg.SQL.DatabaseURL, sqlstore.Options{PageSize: s.cfg.Cleanup.PageSize})
	if err != nil {
		return nil, s.out.ErrorWithContext(
			"SQL connection failed",
			err.Error(),
			nil,
			[]string{fmt.Sprintf("Check sql.database_url in %s or %s", configPath, config.EnvDatabaseURL)},
		)
	}
	s.sql = st
	return st, nil
}

func (s *session) close(ctx context.Context) {
	if s.sql != nil {
		_ = s.sql.Close()
	}
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.shutdownTracing != nil {
		_ = s.shutdownTracing(context.WithoutCancel(ctx))
	}
}

// parseRevision parses a non-negative snapshot revision argument.
func parseRevision(out *printer.Printer, arg string) (int64, error) {
	rev, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || rev < 0 || rev > archive.MaxRevision {
		return 0, out.Error(
			"invalid revision",
			fmt.Sprintf("Revision '%s' must be an integer between 0 and %d.", arg, archive.MaxRevision),
			nil,
		)
	}
	return rev, nil
}

func newPrinter(cmd *cobra.Command) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}
