package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"vmc/pkg/typedast"
	"vmc/pkg/utils"
)

// loadModule reads a typed-AST file (JSON or YAML), dispatching on its
// extension.
func loadModule(path string) (*typedast.Module, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.Wrap(err, "read typed-AST file")
	}

	var mod typedast.Module
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(bytes, &mod); err != nil {
			return nil, utils.Wrap(err, "parse YAML typed-AST file")
		}
	case ".json":
		if err := json.Unmarshal(bytes, &mod); err != nil {
			return nil, utils.Wrap(err, "parse JSON typed-AST file")
		}
	default:
		// Fall back to YAML, which (unlike JSON) also accepts plain JSON
		// input, so an unrecognized extension still has a fighting chance.
		if err := yaml.Unmarshal(bytes, &mod); err != nil {
			return nil, utils.Wrap(err, "parse typed-AST file")
		}
	}
	return &mod, nil
}
