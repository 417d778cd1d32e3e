// Package configs provides embedded configuration templates for kbi.
//
// The templates are used by:
//   - cmd/kbi/cmd/sample.go → `kbi sample-config` writes ConfigTemplate
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/kbi/config.yaml)
//  3. Project config (--config, config/kbi.yaml, kbi.yaml)
//  4. Environment variables (KBI_*)
package configs

import _ "embed"

// ConfigTemplate is the commented sample project configuration.
//
//go:embed kbi.example.yaml
var ConfigTemplate string
