// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanager

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DecodeBytesAsString is a mapstructure decode hook that accepts a
// byte slice where a string is expected.  CBOR-decoded documents
// often carry these.
func DecodeBytesAsString(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() == reflect.String && from.Kind() == reflect.Slice && from.Elem().Kind() == reflect.Uint8 {
		return string(data.([]uint8)), nil
	}
	return data, nil
}

// Decode uses the mapstructure library to decode a string-keyed map
// into a structure.  RFC 3339 strings are accepted for time fields.
func Decode(result interface{}, input interface{}) error {
	return decode(result, input, nil)
}

func decode(result, input interface{}, metadata *mapstructure.Metadata) error {
	config := mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			DecodeBytesAsString,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
		Metadata:         metadata,
		Result:           result,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err == nil {
		err = decoder.Decode(input)
	}
	return err
}

// ApplyPatch changes the fields of target, which must be a pointer to
// a struct, named by keys in patch.  Fields not named in the patch
// keep their values; slice fields named in the patch are replaced
// wholesale.
func ApplyPatch(target interface{}, patch Doc) error {
	tv := reflect.ValueOf(target)
	if tv.Kind() != reflect.Ptr || tv.Elem().Kind() != reflect.Struct {
		return errors.New("patch target must be a pointer to a struct")
	}
	tv = tv.Elem()

	// Decode into a scratch copy, then copy only the fields that
	// were actually mentioned
	scratch := reflect.New(tv.Type())
	var metadata mapstructure.Metadata
	err := decode(scratch.Interface(), map[string]interface{}(patch), &metadata)
	if err != nil {
		return err
	}
	// metadata.Keys holds mapstructure names, "size" or
	// "size.width"; only the top-level ones matter here
	byName := make(map[string]int)
	for i := 0; i < tv.NumField(); i++ {
		name := strings.SplitN(tv.Type().Field(i).Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" {
			name = tv.Type().Field(i).Name
		}
		byName[name] = i
	}
	for _, key := range metadata.Keys {
		i, ok := byName[key]
		if !ok || !tv.Field(i).CanSet() {
			continue
		}
		tv.Field(i).Set(scratch.Elem().Field(i))
	}
	return nil
}
