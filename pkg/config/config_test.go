package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskslot/pkg/errs"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []int{4, 20}, cfg.Policy.WakeHours)
	assert.Equal(t, 25, cfg.Policy.UnitMinutes)
	assert.Equal(t, 30, cfg.Policy.CadenceMinutes)
	assert.Equal(t, 7, cfg.Policy.HorizonDays)
	assert.Equal(t, DedupByTitle, cfg.Policy.DedupKey)
	assert.Equal(t, "graph", cfg.Calendar.Provider)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
policy:
  wake_hours: [7, 22]
  timezone: UTC
task_source: taskwarrior
calendar:
  provider: google
  name: Work
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int{7, 22}, cfg.Policy.WakeHours)
	assert.Equal(t, "UTC", cfg.Policy.Timezone)
	assert.Equal(t, 25, cfg.Policy.UnitMinutes)
	assert.Equal(t, "taskwarrior", cfg.TaskSource)
	assert.Equal(t, "Work", cfg.Calendar.Name)
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	cases := map[string]string{
		"empty wake hours": "policy:\n  wake_hours: []\n",
		"reversed":         "policy:\n  wake_hours: [20, 4]\n",
		"out of range":     "policy:\n  wake_hours: [4, 24]\n",
		"bad dedup":        "policy:\n  wake_hours: [4, 20]\n  dedup_key: hash\n",
		"bad timezone":     "policy:\n  wake_hours: [4, 20]\n  timezone: Mars/Olympus\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0600))

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errs.IsConfig(err), "got %v", err)
		})
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wake: [1, 2]\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPolicyValidateMissingWakeHours(t *testing.T) {
	p := DefaultPolicy()
	p.WakeHours = nil

	err := p.Validate()

	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "wake_hours", cfgErr.Field)
}

func TestPolicyDerivedDurations(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 2, p.UnitsPerHour())
	assert.Equal(t, "25m0s", p.Unit().String())
	assert.Equal(t, "30m0s", p.Cadence().String())
	assert.Equal(t, "25h0m0s", p.Probe().String())
	assert.Equal(t, "168h0m0s", p.Horizon().String())
}

func TestManagerSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	m, err := NewManager(path, zerolog.Nop())
	require.NoError(t, err)

	p := m.Get()
	p.WakeHours = []int{6, 18}
	require.NoError(t, m.Set(p))
	assert.Equal(t, []int{6, 18}, m.Get().WakeHours)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 18}, reloaded.Policy.WakeHours)
}

func TestManagerSetRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path, zerolog.Nop())
	require.NoError(t, err)

	err = m.Set(Policy{})
	assert.True(t, errs.IsConfig(err))
	assert.Equal(t, []int{4, 20}, m.Get().WakeHours, "rejected write must not change the policy")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestManagerGetReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"), zerolog.Nop())
	require.NoError(t, err)

	p := m.Get()
	p.WakeHours[0] = 0

	assert.Equal(t, 4, m.Get().WakeHours[0])
}
