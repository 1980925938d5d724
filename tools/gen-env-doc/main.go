//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"
	"strings"

	cfg "github.com/acc-network/relay/internal/config"
)

func main() {
	var md strings.Builder
	md.WriteString("# Environment Variables\n\n" +
		"Generated from `config.EnvSpecs()`. **Do not edit manually.**\n\n" +
		"| Variable | Default | Type | Required | Description |\n" +
		"|----------|---------|------|----------|-------------|\n")

	for _, s := range cfg.EnvSpecs() {
		def := s.Default
		if def == "" {
			def = "-"
		}
		required := ""
		if s.Required {
			required = "yes"
		}
		fmt.Fprintf(&md, "| `%s` | `%s` | `%s` | %s | %s |\n", s.FullName, def, s.Type, required, s.Description)
	}

	if err := os.MkdirAll("../../docs", 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile("../../docs/environment.md", []byte(md.String()), 0o644); err != nil {
		panic(err)
	}
}
