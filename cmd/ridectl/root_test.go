package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/rideplanner/internal/config"
	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/identity"
	"github.com/pkordes/rideplanner/internal/service"
	"github.com/pkordes/rideplanner/internal/store"
	"github.com/pkordes/rideplanner/internal/store/memstore"
)

// run executes ridectl with args against a and returns stdout.
func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seededApp returns an app whose store already holds one scheduled ride
// owned by u1.
func seededApp(t *testing.T) (*app, string, *config.StoreConfig) {
	t.Helper()
	ms := memstore.New()
	start := domain.NewLocalTime(2026, time.February, 10, 6, 0, 0)
	plan, err := service.NewRideService(ms, slog.Default()).Create(context.Background(), "u1", domain.RideDraft{
		Title:          "Delhi to Manali",
		StartLocation:  "Delhi",
		EndLocation:    "Manali",
		ScheduledStart: &start,
	})
	require.NoError(t, err)

	var seen config.StoreConfig
	a := &app{
		v: viper.New(),
		openStore: func(_ context.Context, cfg config.StoreConfig, _ *slog.Logger) (store.Store, func(), error) {
			seen = cfg
			return ms, func() {}, nil
		},
	}
	return a, plan.ID, &seen
}

func TestExport_WritesFile(t *testing.T) {
	a, rideID, _ := seededApp(t)
	dir := t.TempDir()

	out, err := run(t, a, "export", rideID, "--store", "memory", "--user", "u1", "--out", dir)

	require.NoError(t, err)
	path := filepath.Join(dir, "Delhi_to_Manali.ics")
	assert.Equal(t, path, strings.TrimSpace(out))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "DTSTART:20260210T060000")
}

func TestExport_Stdout(t *testing.T) {
	a, rideID, _ := seededApp(t)

	out, err := run(t, a, "export", rideID, "--store", "memory", "--user", "u1", "--out", "-")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
}

func TestExport_Link(t *testing.T) {
	a, rideID, _ := seededApp(t)

	out, err := run(t, a, "export", rideID, "--store", "memory", "--user", "u1", "--link")

	require.NoError(t, err)
	assert.Contains(t, out, "calendar.google.com")
}

func TestExport_OtherUserIsForbidden(t *testing.T) {
	a, rideID, _ := seededApp(t)

	_, err := run(t, a, "export", rideID, "--store", "memory", "--user", "u2", "--out", "-")

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestExport_RequiresUser(t *testing.T) {
	a, rideID, _ := seededApp(t)

	_, err := run(t, a, "export", rideID, "--store", "memory")

	assert.ErrorContains(t, err, "--user")
}

func TestExport_StoreSettingsFromEnvAndConfigFile(t *testing.T) {
	a, rideID, seen := seededApp(t)
	cfgPath := filepath.Join(t.TempDir(), "ridectl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database_url: postgres://from-file\nredis_addr: redis:6379\n"), 0o600))
	t.Setenv("RIDEPLANNER_REDIS_CHANNEL", "rides-env")

	_, err := run(t, a, "export", rideID, "--config", cfgPath, "--user", "u1", "--out", "-")

	require.NoError(t, err)
	assert.Equal(t, config.StorePostgres, seen.Backend)
	assert.Equal(t, "postgres://from-file", seen.DatabaseURL)
	assert.Equal(t, "redis:6379", seen.RedisAddr)
	assert.Equal(t, "rides-env", seen.RedisChannel)
}

func TestExport_FlagBeatsConfigFile(t *testing.T) {
	a, rideID, seen := seededApp(t)
	cfgPath := filepath.Join(t.TempDir(), "ridectl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database_url: postgres://from-file\n"), 0o600))

	_, err := run(t, a, "export", rideID, "--config", cfgPath, "--database-url", "postgres://from-flag", "--user", "u1", "--out", "-")

	require.NoError(t, err)
	assert.Equal(t, "postgres://from-flag", seen.DatabaseURL)
}

func TestMigrate_NeedsDatabaseURL(t *testing.T) {
	t.Setenv("RIDEPLANNER_DATABASE_URL", "")

	_, err := run(t, defaultApp(), "migrate")

	assert.ErrorContains(t, err, "database url not set")
}

func TestMigrate_RejectsMemoryStore(t *testing.T) {
	_, err := run(t, defaultApp(), "migrate", "--store", "memory")

	assert.ErrorContains(t, err, "postgres")
}

func TestToken_IsVerifiable(t *testing.T) {
	out, err := run(t, defaultApp(), "token", "--user", "u1", "--jwt-secret", "s3cret", "--ttl", "1h")
	require.NoError(t, err)

	u, err := identity.NewJWT("s3cret", time.Hour).Verify(strings.TrimSpace(out))

	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestToken_SecretFromEnv(t *testing.T) {
	t.Setenv("RIDEPLANNER_JWT_SECRET", "env-secret")

	out, err := run(t, defaultApp(), "token", "--user", "u1")
	require.NoError(t, err)

	_, err = identity.NewJWT("env-secret", time.Hour).Verify(strings.TrimSpace(out))
	assert.NoError(t, err)
}

func TestToken_RequiresSecret(t *testing.T) {
	t.Setenv("RIDEPLANNER_JWT_SECRET", "")

	_, err := run(t, defaultApp(), "token", "--user", "u1")

	assert.ErrorContains(t, err, "jwt secret")
}
