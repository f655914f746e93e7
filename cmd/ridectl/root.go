package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pkordes/rideplanner/internal/bootstrap"
	"github.com/pkordes/rideplanner/internal/config"
	"github.com/pkordes/rideplanner/internal/store"
)

const envPrefix = "RIDEPLANNER"

// Config keys. Each is also read from RIDEPLANNER_<KEY> and from the config
// file, and the matching flag wins over both.
const (
	keyStore        = "store"
	keyDatabaseURL  = "database_url"
	keyRedisAddr    = "redis_addr"
	keyRedisChannel = "redis_channel"
	keyJWTSecret    = "jwt_secret"
	keyLogLevel     = "log_level"
)

type storeOpener func(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (store.Store, func(), error)

// app carries what the subcommands share.
type app struct {
	v         *viper.Viper
	openStore storeOpener
	log       *slog.Logger
}

func defaultApp() *app {
	return &app{v: viper.New(), openStore: bootstrap.OpenStore}
}

func newRootCmd(a *app) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "ridectl",
		Short:         "Operate the ride planner document store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cfgFile)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	f.String("store", config.StorePostgres, "store backend: postgres or memory")
	f.String("database-url", "", "Postgres connection string")
	f.String("redis-addr", "", "Redis address for the change feed")
	f.String("log-level", "warn", "log level: debug, info, warn, error")

	for key, flag := range map[string]string{
		keyStore:       "store",
		keyDatabaseURL: "database-url",
		keyRedisAddr:   "redis-addr",
		keyLogLevel:    "log-level",
	} {
		_ = a.v.BindPFlag(key, f.Lookup(flag))
	}

	root.AddCommand(newMigrateCmd(a), newExportCmd(a), newTokenCmd(a))
	return root
}

func (a *app) loadConfig(cfgFile string) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	a.v.SetDefault(keyRedisChannel, "ride-changes")

	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString(keyLogLevel))); err != nil {
		level = slog.LevelWarn
	}
	a.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// storeConfig maps viper keys onto the environment names config expects.
func (a *app) storeConfig() (config.StoreConfig, error) {
	st, err := config.LoadStoreFrom(func(name string) string {
		return a.v.GetString(strings.ToLower(name))
	})
	if me := (*config.MissingError)(nil); errors.As(err, &me) {
		return config.StoreConfig{}, fmt.Errorf("database url not set: use --database-url or %s_DATABASE_URL", envPrefix)
	}
	return st, err
}
