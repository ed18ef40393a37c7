// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"sflowhdr/common/helpers"
)

// ConfigRelatedOptions are command-line options related to handling a
// configuration file.
type ConfigRelatedOptions struct {
	Path       string
	Dump       bool
	BeforeDump func()
}

type resetter interface {
	Reset()
}

// envOverride is a configuration value set from the environment.
type envOverride struct {
	name  string
	path  []string
	value string
}

// Parse fills config from its defaults (when it has a Reset() method),
// the configuration file and the SFLOWHDR_<COMPONENT>_* environment
// variables, in that order. The result is validated and optionally
// dumped as YAML to out.
func (c ConfigRelatedOptions) Parse(out io.Writer, component string, config interface{}) error {
	if r, ok := config.(resetter); ok {
		r.Reset()
	}
	rawConfig, err := readConfigFile(c.Path)
	if err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(helpers.GetMapStructureDecoderConfig(config))
	if err != nil {
		return fmt.Errorf("unable to create configuration decoder: %w", err)
	}
	if err := decoder.Decode(rawConfig); err != nil {
		return fmt.Errorf("unable to parse configuration: %w", err)
	}
	for _, o := range environmentOverrides(os.Environ(), component) {
		if err := decoder.Decode(nestOverride(o.path, o.value)); err != nil {
			return fmt.Errorf("unable to parse override %q: %w", o.name, err)
		}
	}
	if err := helpers.Validate.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	if c.BeforeDump != nil {
		c.BeforeDump()
	}
	if !c.Dump {
		return nil
	}
	output, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("unable to dump configuration: %w", err)
	}
	fmt.Fprintf(out, "---\n%s\n", output)
	return nil
}

// readConfigFile reads a YAML configuration file. An empty path gives
// an empty configuration.
func readConfigFile(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}
	input, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration file: %w", err)
	}
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(input, &rawConfig); err != nil {
		return nil, fmt.Errorf("unable to parse configuration file: %w", err)
	}
	return rawConfig, nil
}

// environmentOverrides extracts the variables prefixed by
// SFLOWHDR_<COMPONENT>_, sorted by name.
func environmentOverrides(environ []string, component string) []envOverride {
	prefix := fmt.Sprintf("SFLOWHDR_%s_", strings.ToUpper(component))
	overrides := []envOverride{}
	for _, keyval := range environ {
		name, value, ok := strings.Cut(keyval, "=")
		if !ok || !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
			continue
		}
		overrides = append(overrides, envOverride{
			name:  name,
			path:  strings.Split(strings.TrimPrefix(name, prefix), "_"),
			value: value,
		})
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].name < overrides[j].name })
	return overrides
}

// nestOverride turns a path and a value into a nested structure:
// FLOW_INPUTS_0_WORKERS=4 becomes {flow: {inputs: [{workers: 4}]}}.
// Numeric parts are slice indexes.
func nestOverride(path []string, value string) interface{} {
	var result interface{} = value
	for i := len(path) - 1; i >= 0; i-- {
		if index, err := strconv.Atoi(path[i]); err == nil && index >= 0 {
			slice := make([]interface{}, index+1)
			slice[index] = result
			result = slice
			continue
		}
		result = map[string]interface{}{path[i]: result}
	}
	return result
}
