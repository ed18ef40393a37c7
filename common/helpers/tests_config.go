// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !release

package helpers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ConfigurationDecodeCases describes test cases for configuration
// decoding. Values are returned by functions as decoding mutates them.
type ConfigurationDecodeCases []struct {
	Description    string
	Pos            Pos
	Initial        func() any // initial value for configuration
	Configuration  func() any // configuration to decode
	Expected       any
	Error          bool
	SkipValidation bool
}

// roundTripYAML encodes and decodes a value with YAML, like when it is
// read from a configuration file.
func roundTripYAML(t *testing.T, pos Pos, in any) any {
	t.Helper()
	out, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("%syaml.Marshal() error:\n%+v", pos, err)
	}
	var result any
	if err := yaml.Unmarshal(out, &result); err != nil {
		t.Fatalf("%syaml.Unmarshal() error:\n%+v", pos, err)
	}
	return result
}

// decodeAndValidate decodes input into target and validates it unless
// asked otherwise.
func decodeAndValidate(target *any, input any, validate bool) error {
	decoder, err := mapstructure.NewDecoder(GetMapStructureDecoderConfig(target))
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return err
	}
	if validate {
		return Validate.Struct(*target)
	}
	return nil
}

// TestConfigurationDecode decodes each configuration as is and after
// a YAML round-trip, then compares the result with the expected one.
func TestConfigurationDecode(t *testing.T, cases ConfigurationDecodeCases, options ...cmp.Option) {
	t.Helper()
	for _, tc := range cases {
		for _, fromYAML := range []bool{false, true} {
			title := tc.Description
			if fromYAML {
				title += " (from YAML)"
			}
			t.Run(title, func(t *testing.T) {
				t.Helper()
				var input any
				if tc.Configuration != nil {
					input = tc.Configuration()
				}
				if fromYAML {
					input = roundTripYAML(t, tc.Pos, input)
				}
				got := tc.Initial()
				err := decodeAndValidate(&got, input, !tc.SkipValidation)
				switch {
				case tc.Error && err != nil:
					return
				case tc.Error:
					t.Fatalf("%sDecode() did not error", tc.Pos)
				case err != nil:
					t.Fatalf("%sDecode() error:\n%+v", tc.Pos, err)
				}
				if diff := Diff(got, tc.Expected, options...); diff != "" {
					t.Fatalf("%sDecode() (-got, +want):\n%s", tc.Pos, diff)
				}
			})
		}
	}
}
