// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/sirupsen/logrus"
)

// context holds all of the information and objects that can be
// extracted from one request.
type context struct {
	// ID is the instance identifier, without its sigil, or empty
	// for a collection request.
	ID string

	// ParentIDs are the identifiers of parent instances in a
	// nested path, outermost first, without their sigils.
	ParentIDs []string

	// Query holds the URL query parameters.
	Query url.Values

	// Attrs is the decoded request body for PUT and POST.
	Attrs map[string]interface{}

	// IsInstRef is true if the response represents one instance.
	// It defaults to whether ID is set; verbs may change it.
	IsInstRef bool

	// ResourceName, if set, overrides the response key.
	ResourceName string

	// OnSuccess and OnError, if set, see every response built
	// for this request.
	OnSuccess func(restdata.Response)
	OnError   func(restdata.Response)

	Log logrus.FieldLogger
}

// newContext builds a context from the captured path identifiers.
// If instance is true the last capture is the instance id.
func newContext(captures []string, instance bool, query url.Values) *context {
	ctx := &context{Query: query}
	if query == nil {
		ctx.Query = url.Values{}
	}
	ids := make([]string, len(captures))
	for i, c := range captures {
		ids[i] = restdata.DecodeID(c)
	}
	if instance && len(ids) > 0 {
		ctx.ID = ids[len(ids)-1]
		ids = ids[:len(ids)-1]
	}
	ctx.ParentIDs = ids
	return ctx
}

// ParentID returns the innermost parent identifier, or "".
func (ctx *context) ParentID() string {
	if len(ctx.ParentIDs) == 0 {
		return ""
	}
	return ctx.ParentIDs[len(ctx.ParentIDs)-1]
}

// BoolParam parses a query parameter given as a truth value (1, on,
// false, no, ...).  Anything else, including an empty value, is a bad
// request.
func (ctx *context) BoolParam(name string) (bool, error) {
	value := ctx.Query.Get(name)
	switch strings.ToLower(value) {
	case "0", "f", "n", "false", "off", "no":
		return false, nil
	case "1", "t", "y", "true", "on", "yes":
		return true, nil
	default:
		return false, restdata.ErrBadRequest("invalid %s %q", name, value)
	}
}

// IntParam returns an integer query parameter, or def if it is absent.
// A malformed or non-positive value is a bad request.
func (ctx *context) IntParam(name string, def int) (int, error) {
	s := ctx.Query.Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, restdata.ErrBadRequest("invalid %s %q", name, s)
	}
	return n, nil
}

// TrashStateParam reads the "trashState" query parameter, which
// defaults to "out".
func (ctx *context) TrashStateParam() (mediamanager.TrashState, error) {
	var ts mediamanager.TrashState
	s := ctx.Query.Get("trashState")
	if s == "" {
		return mediamanager.TrashOut, nil
	}
	if err := ts.UnmarshalText([]byte(s)); err != nil {
		return ts, restdata.ErrBadRequest("invalid trashState %q", s)
	}
	return ts, nil
}

// HasParam reports whether a query parameter was given at all, even
// with an empty value.
func (ctx *context) HasParam(name string) bool {
	_, present := ctx.Query[name]
	return present
}
