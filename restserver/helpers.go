// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains helpers shared by the concrete resources.

import (
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
)

// toAPIError translates a backend error into an API error code.
func toAPIError(err error) restdata.APIError {
	switch e := err.(type) {
	case restdata.APIError:
		return e
	case mediamanager.ErrNoFilesFound:
		return restdata.APIError{Code: restdata.NoFilesFound, Message: e.Error()}
	case mediamanager.ErrInvalidAttribute:
		return restdata.APIError{Code: restdata.AttributeValidationFailure, Message: e.Error()}
	case mediamanager.ErrNoSuchImage:
		return restdata.APIError{Code: restdata.BadRequest, Message: e.Error()}
	case mediamanager.ErrNoSuchImportBatch:
		return restdata.APIError{Code: restdata.BadRequest, Message: e.Error()}
	case mediamanager.ErrNoSuchSync:
		return restdata.APIError{Code: restdata.BadRequest, Message: e.Error()}
	case restdata.ErrUnsupportedMediaType:
		return restdata.APIError{Code: restdata.BadRequest, Message: e.Error()}
	}
	if err == mediamanager.ErrConflict {
		return restdata.APIError{Code: restdata.Conflict, Message: err.Error()}
	}
	if err == mediamanager.ErrNoOID {
		return restdata.APIError{Code: restdata.BadRequest, Message: err.Error()}
	}
	return restdata.APIError{Code: restdata.UnknownError, Message: err.Error()}
}

// decodeAttrs decodes a request body into a typed payload.  Malformed
// payloads are bad requests.
func decodeAttrs(ctx *context, out interface{}) error {
	if err := mediamanager.Decode(out, ctx.Attrs); err != nil {
		return restdata.ErrBadRequest("invalid request body: %v", err)
	}
	return nil
}
