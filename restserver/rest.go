// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains the resource dispatch skeleton.
//
// A request is matched to a resource by path pattern, then content
// type negotiation picks the response format, the body is decoded to
// an attribute map, and DoRequest picks a verb by method and the
// presence of an instance id.  Every outcome, including failures, is
// sent as a response envelope whose HTTP status derives from its
// error code.
//
// Another more generic solution out there is
// https://github.com/jchannon/negotiator.  This only deals with
// output type negotiation, forces all JSON-ish output to report
// itself as "application/json", and doesn't deal well with other HTTP
// status codes.

import (
	"errors"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

var typeMap = map[string]string{
	"text/json":              restdata.V0JSONMediaType,
	"application/json":       restdata.V0JSONMediaType,
	restdata.JSONMediaType:   restdata.V0JSONMediaType,
	restdata.V0JSONMediaType: restdata.V0JSONMediaType,
}

// errBadAccept is returned from negotiateResponse() if the Accept:
// header is malformed (and no more specific error applies).
var errBadAccept = errors.New("Invalid Accept: header")

// errNotAcceptable is returned from negotiateResponse() if the Accept:
// header does not mention any media types we can actually return.
type errNotAcceptable struct{}

func (e errNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

func (e errNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// unknownErrorMessage is sent when a representation cannot be built.
const unknownErrorMessage = "Unknown error"

// verb is one of the index/create/read/update/delete actions of a
// resource.  It returns a backend result that Transform turns into a
// representation.
type verb func(*context) (interface{}, error)

// paged is returned from an index verb whose result is one page of a
// collection.
type paged struct {
	Items  interface{}
	Paging *restdata.Paging
}

// resourceHandler dispatches requests against one resource.
type resourceHandler struct {
	// Resource describes the resource and its names.
	Resource *Resource

	// Index lists the collection.
	Index verb

	// Create adds to the collection.
	Create verb

	// Read fetches one instance.
	Read verb

	// Update modifies one instance.
	Update verb

	// Delete removes one instance, or acts on the whole
	// collection when there is no instance id.
	Delete verb

	// Transform turns a verb's result into its external
	// representation.  If nil, results are sent as is.
	Transform func(*context, interface{}) (interface{}, error)

	Log logrus.FieldLogger
}

func (h *resourceHandler) log() logrus.FieldLogger {
	if h.Log == nil {
		return logrus.StandardLogger()
	}
	return h.Log
}

// DoRequest runs the verb selected by an HTTP method and the
// presence of an instance id, and builds the response envelope.
//
//     GET     instance    Read
//     PUT     instance    Update
//     DELETE  instance    Delete
//     GET     collection  Index
//     POST    collection  Create
//     DELETE  collection  Delete
//
// Anything else is NOT_IMPLEMENTED.
func (h *resourceHandler) DoRequest(method string, ctx *context) restdata.Response {
	var action verb
	if ctx.ID != "" {
		ctx.IsInstRef = true
		switch method {
		case "GET":
			action = h.Read
		case "PUT":
			action = h.Update
		case "DELETE":
			action = h.Delete
		}
	} else {
		switch method {
		case "GET":
			action = h.Index
		case "POST":
			action = h.Create
		case "DELETE":
			action = h.Delete
		}
	}
	if action == nil {
		return h.respond(ctx, nil, restdata.ErrNotImplemented)
	}
	result, err := h.call(action, ctx)
	return h.respond(ctx, result, err)
}

// call runs a verb, turning a panic into an error.
func (h *resourceHandler) call(action verb, ctx *context) (result interface{}, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = restdata.APIError{
				Code:    restdata.UnknownError,
				Message: restdata.PanicMessage(recovered),
			}
		}
	}()
	return action(ctx)
}

// responseName picks the key the representation is sent under.
func (h *resourceHandler) responseName(ctx *context) string {
	if ctx.ResourceName != "" {
		return ctx.ResourceName
	}
	if ctx.IsInstRef {
		return h.Resource.InstName
	}
	return h.Resource.Name
}

// respond builds the response envelope for a verb's result and calls
// the context's callbacks.  A failure to build the representation
// produces an UNKNOWN_ERROR envelope; respond itself never fails.
func (h *resourceHandler) respond(ctx *context, result interface{}, err error) (resp restdata.Response) {
	defer func() {
		if resp.Status == 0 {
			if ctx.OnSuccess != nil {
				ctx.OnSuccess(resp)
			}
		} else if ctx.OnError != nil {
			ctx.OnError(resp)
		}
	}()

	if err != nil {
		return restdata.ErrorEnvelope(toAPIError(err))
	}
	resp = restdata.SuccessEnvelope("", nil)
	name := h.responseName(ctx)
	if name == "" || result == nil {
		return resp
	}

	var paging *restdata.Paging
	if page, isPaged := result.(paged); isPaged {
		result = page.Items
		paging = page.Paging
	}
	rep, err := h.transform(ctx, result)
	if err != nil {
		h.log().WithError(err).WithField("resource", h.Resource.Name).Error("error transforming representation")
		resp = restdata.ErrorEnvelope(restdata.APIError{
			Code:    restdata.UnknownError,
			Message: unknownErrorMessage,
		})
		if !ctx.IsInstRef {
			return resp
		}
		resp.Name = name
		resp.Rep = restdata.Rep{}
		return resp
	}
	resp.Name = name
	resp.Rep = rep
	resp.Paging = paging
	return resp
}

func (h *resourceHandler) transform(ctx *context, result interface{}) (rep interface{}, err error) {
	if h.Transform == nil {
		return result, nil
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			rep = nil
			err = errors.New(restdata.PanicMessage(recovered))
		}
	}()
	return h.Transform(ctx, result)
}

// routeHandler is the HTTP side of one route: it knows the pattern
// that matched and whether the route addresses an instance.
type routeHandler struct {
	Handler  *resourceHandler
	Pattern  *regexp.Regexp
	Instance bool
}

func (rh *routeHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	var (
		response     restdata.Response
		status       int
		responseType string
		err          error
	)

	// Recover from panics by sending an HTTP error.
	defer func() {
		if recovered := recover(); recovered != nil {
			response := restdata.ErrorEnvelope(restdata.APIError{
				Code:    restdata.UnknownError,
				Message: restdata.PanicMessage(recovered),
			})
			resp.Header().Set("Content-Type", restdata.V0JSONMediaType)
			resp.WriteHeader(http.StatusInternalServerError)
			writeResponse(resp, response)
		}
	}()

	// Start by trying to come up with a response type, even before
	// trying to parse the input.  This determines what format an
	// error message could be sent back as.
	responseType, err = negotiateResponse(req)
	if err != nil {
		// Gotta pick something
		responseType = restdata.V0JSONMediaType
		status = http.StatusBadRequest
		if errS, hasStatus := err.(restdata.ErrorStatus); hasStatus {
			status = errS.HTTPStatus()
		}
		response = restdata.ErrorEnvelope(restdata.ErrBadRequest("%v", err))
	}

	var ctx *context
	if err == nil {
		var captures []string
		if match := rh.Pattern.FindStringSubmatch(req.URL.Path); match != nil {
			captures = match[1:]
		}
		ctx = newContext(captures, rh.Instance, req.URL.Query())
		ctx.Log = rh.Handler.log().WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
		})
	}

	// Read the (JSON?) body, if it's there
	if err == nil && (req.Method == "PUT" || req.Method == "POST") && req.ContentLength != 0 {
		var attrs map[string]interface{}
		contentType := req.Header.Get("Content-Type")
		err = restdata.Decode(contentType, req.Body, &attrs)
		if err != nil {
			status = http.StatusBadRequest
			if errS, hasStatus := err.(restdata.ErrorStatus); hasStatus {
				status = errS.HTTPStatus()
			}
			response = restdata.ErrorEnvelope(restdata.ErrBadRequest("%v", err))
		}
		ctx.Attrs = attrs
	}

	if err == nil {
		if ctx.Attrs == nil {
			ctx.Attrs = map[string]interface{}{}
		}
		response = rh.Handler.DoRequest(req.Method, ctx)
		status = restdata.HTTPResponseStatusCode(response)
	}

	if _, understood := typeMap[responseType]; !understood {
		responseType = restdata.V0JSONMediaType
	}
	resp.Header().Set("Content-Type", responseType)
	resp.WriteHeader(status)
	if req.Method != "HEAD" {
		writeResponse(resp, response)
	}
}

// writeResponse encodes a response envelope fully before writing any
// of it, so that an encoding failure cannot leave half a body.  By
// the time this runs the status line is out, so a failed write is
// only logged.
func writeResponse(w http.ResponseWriter, response restdata.Response) {
	var out []byte
	json := &codec.JsonHandle{}
	encoder := codec.NewEncoderBytes(&out, json)
	if err := encoder.Encode(response.Map()); err != nil {
		logrus.WithError(err).Error("could not encode response")
		return
	}
	if _, err := w.Write(out); err != nil {
		logrus.WithError(err).Debug("could not write response")
	}
}

// negotiateResponse returns a supported MIME type for the response
// body, following the path laid out in RFC 7231 section 5.3.
func negotiateResponse(req *http.Request) (string, error) {
	accept := req.Header.Get("Accept")
	if accept == "" {
		accept = "*/*"
	}
	bestType := ""
	bestQ := 0.0
	mediaRanges := strings.Split(accept, ",")
	for _, mediaRange := range mediaRanges {
		mediaRange = strings.TrimSpace(mediaRange)
		mediaType, params, err := mime.ParseMediaType(mediaRange)
		if err != nil {
			return "", err
		}

		// What is the "q" ("quality") parameter for this type?
		// If it is less than the best known so far, skip it
		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil {
				return "", err
			}
			if q < 0.0 || q > 1.0 {
				return "", errBadAccept
			}
		}
		if q < bestQ {
			continue
		}

		// This is acceptable if it's listed in the type
		// map; or it's one of a couple of specific wildcards.
		// Also need to handle wildcard precedence.  So:
		if mediaType == "*/*" {
			// Doesn't override anything.
			if q > bestQ {
				bestType = mediaType
				bestQ = q
			}
		} else if mediaType == "text/*" || mediaType == "application/*" {
			// Only overrides "*/*".
			if q > bestQ || bestType == "*/*" {
				bestType = mediaType
				bestQ = q
			}
		} else if _, knownType := typeMap[mediaType]; knownType {
			// Overrides any wildcard.  We want the first one
			// at a given q to win.
			if q > bestQ || bestType == "*/*" || bestType == "text/*" || bestType == "application/*" {
				bestType = mediaType
				bestQ = q
			}
		}
		// Otherwise we don't recognize this type at all, so
		// just drop it.
		//
		// The RFC endorses honoring type parameters as being
		// "more specific" but we don't really deal with that.
	}
	// If this failed to win, return an error
	if bestQ == 0.0 {
		return "", errNotAcceptable{}
	}
	switch bestType {
	case "*/*":
		return restdata.V0JSONMediaType, nil
	case "application/*":
		return restdata.V0JSONMediaType, nil
	case "text/*":
		return "text/json", nil
	default:
		return bestType, nil
	}
}
