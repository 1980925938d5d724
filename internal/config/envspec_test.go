package config_test

import (
	"fmt"
	"reflect"
	"testing"

	cfg "github.com/acc-network/relay/internal/config"
	"github.com/stretchr/testify/require"
)

func TestEnvSpecs(t *testing.T) {
	specs := cfg.EnvSpecs()

	fields := reflect.TypeOf(cfg.Config{}).NumField()
	require.Len(t, specs, fields+1)

	seen := map[string]bool{}
	for _, s := range specs {
		require.False(t, seen[s.Name], "duplicated %s", s.Name)
		seen[s.Name] = true
		require.Equal(t, "RELAY_"+s.Name, s.FullName)
		require.NotEmpty(t, s.Description, s.Name)
		require.NotEmpty(t, s.Type, s.Name)
		if s.Required {
			require.Empty(t, s.Default, "required %s must not have a default", s.Name)
		}
	}
}

func TestSpecMatchesDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("RELAY_DATADIR", t.TempDir())

	config, err := cfg.LoadConfig()
	require.NoError(t, err)

	v := reflect.ValueOf(*config)
	byName := map[string]reflect.Value{}
	for i := 0; i < v.NumField(); i++ {
		byName[v.Type().Field(i).Tag.Get("mapstructure")] = v.Field(i)
	}

	for _, s := range cfg.EnvSpecs() {
		if s.Default == "" || s.Name == "DATADIR" {
			continue
		}
		got, ok := byName[s.Name]
		require.True(t, ok, s.Name)
		require.Equal(t, s.Default, coerce(got.Interface()), "default mismatch for %s", s.Name)
	}
}

func coerce(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", x)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32, float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
