//go:generate go run ../../tools/gen-env-doc/main.go
package config

import (
	"reflect"
	"strings"
)

type EnvVar struct {
	Name        string // short name under the RELAY_ prefix (e.g., "DATADIR")
	FullName    string // e.g., "RELAY_DATADIR"
	Type        string // human-readable type
	Default     string // default value as a string ("" if none)
	Description string // one-liner for docs
	Required    bool
}

var requiredVars = map[string]bool{
	"ACCESS_KEY":       true,
	"ENCRYPT_KEY":      true,
	"CHAIN_RPC_URL":    true,
	"PRIVATE_KEY":      true,
	"LEDGER_ADDRESS":   true,
	"SHOP_ADDRESS":     true,
	"CONSUMER_ADDRESS": true,
	"CURRENCY_ADDRESS": true,
}

// EnvSpecs documents every variable read by LoadConfig, in declaration order.
func EnvSpecs() []EnvVar {
	t := reflect.TypeOf(Config{})
	specs := make([]EnvVar, 0, t.NumField()+1)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("mapstructure")
		specs = append(specs, EnvVar{
			Name:        name,
			FullName:    envPrefix + "_" + name,
			Type:        typeName(f.Type.Kind(), name),
			Default:     f.Tag.Get("envDefault"),
			Description: f.Tag.Get("envInfo"),
			Required:    requiredVars[name],
		})
	}
	return append(specs, EnvVar{
		Name:        "CONFIG_FILE",
		FullName:    envPrefix + "_CONFIG_FILE",
		Type:        "string (path)",
		Description: "Optional yaml file read before the environment",
	})
}

func typeName(kind reflect.Kind, name string) string {
	switch {
	case kind == reflect.Bool:
		return "bool"
	case kind == reflect.Float64:
		return "float"
	case kind == reflect.Int64 || kind == reflect.Uint32:
		if strings.HasSuffix(name, "_PORT") {
			return "uint32 (port)"
		}
		return "integer"
	case strings.HasSuffix(name, "_ADDRESS"):
		return "string (hex address)"
	case strings.HasSuffix(name, "_URL"), strings.HasSuffix(name, "ENDPOINT"), strings.HasSuffix(name, "_DSN"):
		return "string (URL)"
	case name == "DATADIR", name == "LOG_FILE":
		return "string (path)"
	case strings.HasSuffix(name, "_EXPRESSION"):
		return "string (cron with seconds)"
	default:
		return "string"
	}
}
