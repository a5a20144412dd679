package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		pol     ThresholdPolicy
		wantErr bool
	}{
		{"valid", ThresholdPolicy{AmberDays: 30, RedDays: 7}, false},
		{"red equals amber", ThresholdPolicy{AmberDays: 30, RedDays: 30}, true},
		{"red above amber", ThresholdPolicy{AmberDays: 7, RedDays: 30}, true},
		{"negative amber", ThresholdPolicy{AmberDays: -1, RedDays: -5}, true},
		{"negative red", ThresholdPolicy{AmberDays: 30, RedDays: -1}, true},
		{"zero red", ThresholdPolicy{AmberDays: 1, RedDays: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pol.Validate("training")
			if tt.wantErr {
				var cfgErr *domain.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, domain.Category("training"), cfgErr.Category)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func writePolicyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writePolicyFile(t, `
categories:
  training:
    amber_days: 90
    red_days: 14
  medical:
    amber_days: 45
    red_days: 7
`)
	set, err := Load(path)
	require.NoError(t, err)

	pol, ok := set.Lookup("training")
	require.True(t, ok)
	assert.Equal(t, ThresholdPolicy{AmberDays: 90, RedDays: 14}, pol)

	_, ok = set.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestLoadRejectsBrokenPolicy(t *testing.T) {
	path := writePolicyFile(t, `
categories:
  training:
    amber_days: 7
    red_days: 30
`)
	_, err := Load(path)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writePolicyFile(t, `
categories:
  training:
    amber_days: 30
    red_dayz: 7
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsEmpty(t *testing.T) {
	path := writePolicyFile(t, "categories: {}\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
