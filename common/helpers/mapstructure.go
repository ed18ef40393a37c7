// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mitchellh/mapstructure"
)

var registeredDecodeHooks []mapstructure.DecodeHookFunc

// RegisterMapstructureUnmarshallerHook registers a decode hook applied
// to every configuration. Only call it from init().
func RegisterMapstructureUnmarshallerHook(hook mapstructure.DecodeHookFunc) {
	registeredDecodeHooks = append(registeredDecodeHooks, hook)
}

// GetMapStructureDecoderConfig returns the decoder configuration used
// for all configuration structures: unknown keys are rejected, weak
// typing is allowed and keys are matched with MapStructureMatchName.
// Extra hooks run before the registered ones.
func GetMapStructureDecoderConfig(config interface{}, hooks ...mapstructure.DecodeHookFunc) *mapstructure.DecoderConfig {
	chain := mapstructure.ComposeDecodeHookFunc(
		mapstructure.ComposeDecodeHookFunc(hooks...),
		mapstructure.ComposeDecodeHookFunc(registeredDecodeHooks...),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	return &mapstructure.DecoderConfig{
		Result:           config,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		MatchName:        MapStructureMatchName,
		DecodeHook:       ProtectedDecodeHookFunc(chain),
	}
}

// ProtectedDecodeHookFunc turns a panic in the provided hook into an
// error.
func ProtectedDecodeHookFunc(hook mapstructure.DecodeHookFunc) mapstructure.DecodeHookFunc {
	return func(from, to reflect.Value) (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				result, err = nil, fmt.Errorf("internal error while parsing: %s", r)
			}
		}()
		return mapstructure.DecodeHookExec(hook, from, to)
	}
}

// MapStructureMatchName matches a configuration key with a field
// name, ignoring case and dashes ("max-record-size" matches
// MaxRecordSize).
func MapStructureMatchName(mapKey, fieldName string) bool {
	return strings.EqualFold(strings.ReplaceAll(mapKey, "-", ""), fieldName)
}

// registeredName returns the name under which the provided inner
// configuration type is registered.
func registeredName[I any](registry map[string]func() I, t reflect.Type) (string, bool) {
	t = derefType(t)
	for name, factory := range registry {
		if derefType(reflect.TypeOf(factory())) == t {
			return name, true
		}
	}
	return "", false
}

// hasFieldMatching tells if a struct type has a field matching the
// provided key.
func hasFieldMatching(t reflect.Type, key string) bool {
	for i := range t.NumField() {
		if MapStructureMatchName(key, t.Field(i).Name) {
			return true
		}
	}
	return false
}

// splitParametrizedKeys extracts the "type" key from a configuration
// map and moves every key not matching a field of the outer structure
// into a "config" sub-map.
func splitParametrizedKeys(from reflect.Value, outer reflect.Type) (string, error) {
	if from.Kind() != reflect.Map {
		return "", errors.New("configuration should be a map")
	}
	inner := reflect.MakeMap(reflect.TypeOf(gin.H{}))
	var typeName string
	for _, key := range from.MapKeys() {
		// YAML may give us interface keys
		k := ElemOrIdentity(key)
		if k.Kind() != reflect.String {
			continue
		}
		name := k.String()
		switch strings.ToLower(name) {
		case "type":
			value := ElemOrIdentity(from.MapIndex(key))
			if value.Kind() != reflect.String {
				return "", fmt.Errorf("type should be a string not %s", value.Kind())
			}
			typeName = strings.ToLower(value.String())
			from.SetMapIndex(key, reflect.Value{})
		case "config":
			return "", errors.New("configuration should not have a `config' key")
		default:
			if hasFieldMatching(outer, name) {
				continue
			}
			inner.SetMapIndex(reflect.ValueOf(name), from.MapIndex(key))
			from.SetMapIndex(key, reflect.Value{})
		}
	}
	from.SetMapIndex(reflect.ValueOf("config"), inner)
	return typeName, nil
}

// ParametrizedConfigurationUnmarshallerHook decodes an outer
// configuration whose "Config" field holds an inner configuration
// selected by the "type" key. Keys not belonging to the outer
// structure are decoded into the inner one. When no type is given, the
// type of the current inner value is kept. The registry maps each type
// name to a function returning the default inner configuration.
func ParametrizedConfigurationUnmarshallerHook[O any, I any](zero O, registry map[string](func() I)) mapstructure.DecodeHookFunc {
	outerType := reflect.TypeOf(zero)
	return func(from, to reflect.Value) (interface{}, error) {
		if to.Type() != outerType {
			return from.Interface(), nil
		}
		current := to.FieldByName("Config")
		typeName, err := splitParametrizedKeys(from, outerType)
		if err != nil {
			return nil, err
		}
		if typeName == "" && !current.IsNil() {
			typeName, _ = registeredName(registry, current.Elem().Type())
		}
		if typeName == "" {
			return nil, errors.New("configuration has no type")
		}
		factory, ok := registry[typeName]
		if !ok {
			return nil, fmt.Errorf("%q is not a known type", typeName)
		}

		// Decode over a copy of the current value when it has the
		// right type, otherwise over the defaults.
		defaults := factory()
		source := reflect.Indirect(reflect.ValueOf(defaults))
		if !current.IsNil() && current.Elem().Type() == reflect.TypeOf(defaults) {
			source = reflect.Indirect(current.Elem())
		}
		fresh := reflect.New(source.Type())
		fresh.Elem().Set(source)
		if reflect.TypeOf(defaults).Kind() == reflect.Pointer {
			current.Set(fresh)
		} else {
			current.Set(fresh.Elem())
		}
		return from.Interface(), nil
	}
}

// ParametrizedConfigurationMarshalYAML flattens an outer configuration
// back into a map with a "type" key, the reverse of
// ParametrizedConfigurationUnmarshallerHook().
func ParametrizedConfigurationMarshalYAML[O any, I any](oc O, registry map[string](func() I)) (interface{}, error) {
	outer := ElemOrIdentity(reflect.ValueOf(oc))
	result := gin.H{}
	var inner reflect.Value
	for i, field := range reflect.VisibleFields(outer.Type()) {
		if field.Name == "Config" {
			inner = reflect.Indirect(outer.Field(i).Elem())
			continue
		}
		result[strings.ToLower(field.Name)] = outer.Field(i).Interface()
	}
	if !inner.IsValid() {
		return nil, errors.New("configuration has no inner configuration")
	}
	typeName, ok := registeredName(registry, inner.Type())
	if !ok {
		return nil, errors.New("unable to guess configuration type")
	}
	result["type"] = typeName
	for i, field := range reflect.VisibleFields(inner.Type()) {
		result[strings.ToLower(field.Name)] = inner.Field(i).Interface()
	}
	return result, nil
}

// ParametrizedConfigurationMarshalJSON is the JSON counterpart of
// ParametrizedConfigurationMarshalYAML().
func ParametrizedConfigurationMarshalJSON[O any, I any](oc O, registry map[string](func() I)) ([]byte, error) {
	result, err := ParametrizedConfigurationMarshalYAML(oc, registry)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
