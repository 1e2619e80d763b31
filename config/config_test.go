package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/scoring"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageJSON, cfg.Storage.Driver)
	assert.Equal(t, "standard", cfg.Scoring.Rule)
	assert.Equal(t, 3, cfg.Registration.MinParticipants)
	assert.Equal(t, 8, cfg.Registration.MaxParticipants)
	assert.Equal(t, "0 20 * * 0", cfg.Scheduler.BroadcastCron)
	assert.Equal(t, "America/Sao_Paulo", cfg.App.Timezone)
	assert.True(t, cfg.Redis.Disabled)
	assert.Empty(t, cfg.Players.Names)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("STORAGE_SQLITE_PATH", "/tmp/m.db")
	t.Setenv("REGISTRATION_MIN_PARTICIPANTS", "2")
	t.Setenv("REDIS_STANDINGS_TTL", "90s")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PLAYER_NAMES", "111=Ana, 222=Bruno,broken")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, 2, cfg.Registration.MinParticipants)
	assert.Equal(t, 90*time.Second, cfg.Redis.StandingsTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, map[string]string{"111": "Ana", "222": "Bruno"}, cfg.Players.Names)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SCORING_RULE=legacy\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SCORING_RULE") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Scoring.Rule)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Storage:      StorageConfig{Driver: "mongo"},
		Scoring:      ScoringConfig{Rule: "table"},
		Registration: RegistrationConfig{MinParticipants: 4, MaxParticipants: 2},
		HTTP:         HTTPConfig{Port: 0},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
	assert.Contains(t, err.Error(), "SCORING_TABLE_PATH")
	assert.Contains(t, err.Error(), "REGISTRATION_MAX_PARTICIPANTS")
	assert.Contains(t, err.Error(), "HTTP_PORT")
}

func TestParseScoringTable(t *testing.T) {
	rule, err := ParseScoringTable([]byte(`
name: house
precedence: last_write
points:
  winner: 5
  runner_up: 2
  last: -2
`))
	require.NoError(t, err)

	assert.Equal(t, "house", rule.Name())
	assert.Equal(t, scoring.PrecedenceLastWrite, rule.Precedence())
	assert.Equal(t, scoring.Table{Winner: 5, RunnerUp: 2, Last: -2}, rule.Table())

	_, err = ParseScoringTable([]byte("precedence: sometimes\n"))
	assert.Error(t, err)
}

func TestBuildScoringRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.yaml")
	require.NoError(t, os.WriteFile(path, []byte("points:\n  winner: 10\n"), 0o600))

	rule, err := ScoringConfig{Rule: "table", TablePath: path}.BuildScoringRule()
	require.NoError(t, err)
	p, err := rule.Points(0, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, p)

	rule, err = ScoringConfig{Rule: "legacy"}.BuildScoringRule()
	require.NoError(t, err)
	assert.Equal(t, "legacy", rule.Name())

	_, err = ScoringConfig{Rule: "table", TablePath: filepath.Join(t.TempDir(), "missing.yaml")}.BuildScoringRule()
	assert.Error(t, err)
}
