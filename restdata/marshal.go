// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/base64"
	"io"
	"mime"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/ugorji/go/codec"
)

// Decode tries to decode a restdata object from a reader, such as an
// HTTP request or response.  out must be a pointer type.
func Decode(contentType string, r io.Reader, out interface{}) error {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5
		// We could also consider http.DetectContentType()
		contentType = "application/octet-stream"
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return err
	}

	// Promote to more specific types
	switch mediaType {
	case "text/json", "application/json", JSONMediaType, V0JSONMediaType:
		mediaType = V0JSONMediaType

	default:
		return ErrUnsupportedMediaType{Type: mediaType}
	}

	decoder := codec.NewDecoder(r, jsonHandle())
	return decoder.Decode(out)
}

// EncodeJSON encodes an object, such as a Notification, to JSON
// bytes.
func EncodeJSON(in interface{}) ([]byte, error) {
	var b []byte
	err := codec.NewEncoderBytes(&b, jsonHandle()).Encode(in)
	return b, err
}

// DecodeJSON decodes JSON bytes into out, which must be a pointer.
// Objects nested in interface values decode as
// map[string]interface{}.
func DecodeJSON(in []byte, out interface{}) error {
	return codec.NewDecoderBytes(in, jsonHandle()).Decode(out)
}

// EncodeCursor turns a store cursor into an opaque URL-safe string.
// The cursor is CBOR encoded, then base64 encoded with the URL-safe
// alphabet and no padding.
func EncodeCursor(c mediamanager.Cursor) string {
	var b []byte
	cbor := &codec.CborHandle{}
	encoder := codec.NewEncoderBytes(&b, cbor)
	if err := encoder.Encode(c); err != nil {
		// a plain struct of scalars always encodes
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor is the dual of EncodeCursor.  It returns false for
// NoCursor, the empty string, or anything else it cannot decode.
func DecodeCursor(s string) (c mediamanager.Cursor, ok bool) {
	if s == "" || s == NoCursor {
		return c, false
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, false
	}
	cbor := &codec.CborHandle{}
	decoder := codec.NewDecoderBytes(b, cbor)
	if err = decoder.Decode(&c); err != nil {
		return mediamanager.Cursor{}, false
	}
	if c.ID == "" {
		return mediamanager.Cursor{}, false
	}
	return c, true
}

// BuildPaging builds the paging envelope for one page of import
// batches.
func BuildPaging(page mediamanager.ImportBatchPage, pageSize int) *Paging {
	if pageSize <= 0 {
		pageSize = mediamanager.DefaultPageSize
	}
	paging := &Paging{
		PageSize: pageSize,
		Cursors: PagingCursors{
			Next:     NoCursor,
			Previous: NoCursor,
		},
	}
	if n := len(page.Cursors); n > 0 {
		paging.Cursors.Start = EncodeCursor(page.Cursors[0])
		paging.Cursors.End = EncodeCursor(page.Cursors[n-1])
	}
	if page.Next != nil {
		paging.Cursors.Next = EncodeCursor(*page.Next)
	}
	if page.Previous != nil {
		paging.Cursors.Previous = EncodeCursor(*page.Previous)
	}
	return paging
}
