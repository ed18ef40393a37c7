// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package flow

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"

	"sflowhdr/common/helpers"
	"sflowhdr/inlet/flow/decoder/sflow"
	"sflowhdr/inlet/flow/input"
	"sflowhdr/inlet/flow/input/file"
	"sflowhdr/inlet/flow/input/udp"
)

// Configuration describes the configuration for the flow component
type Configuration struct {
	// Inputs define a list of input modules to enable
	Inputs []InputConfiguration `validate:"min=1,dive"`
	// Traversal selects which headers are visited for each record.
	Traversal sflow.TraversalMode
	// BreakerThreshold is the number of decoding errors from an
	// exporter before its records are dropped without decoding. 0
	// disables the breaker.
	BreakerThreshold int `validate:"min=0"`
	// BreakerTimeout is how long records from an exporter are dropped
	// once the breaker is open. Errors older than this are forgotten.
	BreakerTimeout time.Duration `validate:"required_unless=BreakerThreshold 0"`
	// RecentFlows is the number of decoded records kept for the API.
	RecentFlows int `validate:"min=0"`
}

// DefaultConfiguration represents the default configuration for the flow component
func DefaultConfiguration() Configuration {
	return Configuration{
		Inputs: []InputConfiguration{{
			Config: udp.DefaultConfiguration(),
		}},
		Traversal:        sflow.TraversalHoisted,
		BreakerThreshold: 100,
		BreakerTimeout:   30 * time.Second,
		RecentFlows:      10,
	}
}

// InputConfiguration represents the configuration for an input.
type InputConfiguration struct {
	// Config is the actual configuration of the input.
	Config input.Configuration
}

// MarshalYAML undoes ConfigurationUnmarshallerHook().
func (ic InputConfiguration) MarshalYAML() (interface{}, error) {
	return helpers.ParametrizedConfigurationMarshalYAML(ic, inputs)
}

// MarshalJSON undoes ConfigurationUnmarshallerHook().
func (ic InputConfiguration) MarshalJSON() ([]byte, error) {
	return helpers.ParametrizedConfigurationMarshalJSON(ic, inputs)
}

var inputs = map[string](func() input.Configuration){
	"udp":  udp.DefaultConfiguration,
	"file": file.DefaultConfiguration,
}

// inputsUnmarshallerHook truncates the current inputs to the length of
// the provided list. Otherwise, mapstructure decodes a list over the
// existing elements and keeps the extra ones: "inputs: []" would leave
// the default UDP input in place. Kept elements are still updated with
// the provided values.
func inputsUnmarshallerHook() mapstructure.DecodeHookFuncValue {
	return func(from, to reflect.Value) (interface{}, error) {
		data := from.Interface()
		from = helpers.ElemOrIdentity(from)
		if !to.IsValid() || to.Type() != reflect.TypeOf(Configuration{}) || !to.CanSet() ||
			from.Kind() != reflect.Map {
			return data, nil
		}
		for _, key := range from.MapKeys() {
			key = helpers.ElemOrIdentity(key)
			if key.Kind() != reflect.String || !helpers.MapStructureMatchName(key.String(), "Inputs") {
				continue
			}
			list := helpers.ElemOrIdentity(from.MapIndex(key))
			if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
				break
			}
			current := to.FieldByName("Inputs")
			if list.Len() < current.Len() {
				current.Set(current.Slice(0, list.Len()))
			}
			break
		}
		return data, nil
	}
}

func init() {
	helpers.RegisterMapstructureUnmarshallerHook(inputsUnmarshallerHook())
	helpers.RegisterMapstructureUnmarshallerHook(
		helpers.ParametrizedConfigurationUnmarshallerHook(InputConfiguration{}, inputs))
}
