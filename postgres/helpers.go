// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"reflect"
	"strconv"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/ugorji/go/codec"
)

// document <-> binary encoders

var mapStringType = reflect.TypeOf(map[string]interface{}(nil))

func cborHandle() *codec.CborHandle {
	cbor := new(codec.CborHandle)
	// Decode untyped maps the way mediamanager.Doc wants them
	cbor.MapType = mapStringType
	return cbor
}

func encodeDoc(in interface{}) (out []byte, err error) {
	encoder := codec.NewEncoderBytes(&out, cborHandle())
	err = encoder.Encode(in)
	return
}

func decodeDoc(in []byte, out interface{}) error {
	decoder := codec.NewDecoderBytes(in, cborHandle())
	return decoder.Decode(out)
}

func bytesToImage(in []byte) (*mediamanager.Image, error) {
	var img mediamanager.Image
	if err := decodeDoc(in, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

func bytesToImportBatch(in []byte) (*mediamanager.ImportBatch, error) {
	var batch mediamanager.ImportBatch
	if err := decodeDoc(in, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func bytesToMap(in []byte) (mediamanager.Doc, error) {
	var out map[string]interface{}
	if err := decodeDoc(in, &out); err != nil {
		return nil, err
	}
	return mediamanager.Doc(out), nil
}

// Revisions are stored as integers and reported as their decimal
// strings.

func revToString(rev int) string {
	return strconv.Itoa(rev)
}

// stringToRev parses a revision; anything unparseable is no revision
// at all.
func stringToRev(rev string) int {
	n, err := strconv.Atoi(rev)
	if err != nil {
		return 0
	}
	return n
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
