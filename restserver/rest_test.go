// Regression tests for rest.go.
//
// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/memory"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failResponseWriter struct {
	Headers    http.Header
	StatusCode int
}

func (rw *failResponseWriter) Header() http.Header {
	if rw.Headers == nil {
		rw.Headers = make(http.Header)
	}
	return rw.Headers
}

func (rw *failResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("foo")
}

func (rw *failResponseWriter) WriteHeader(code int) {
	rw.StatusCode = code
}

// TestDoubleFault checks that, if there is an error writing a JSON
// response, it doesn't actually panic the process.
func TestDoubleFault(t *testing.T) {
	router, err := NewRouter(memory.New(), nil, nil)
	require.NoError(t, err)
	req := &http.Request{
		Method: http.MethodGet,
		URL: &url.URL{
			Path: "/v0/tags",
		},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
		Close:      true,
		Host:       "localhost",
	}
	resp := &failResponseWriter{}
	assert.NotPanics(t, func() { router.ServeHTTP(resp, req) })
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// verbRecorder builds a resource handler whose verbs record which of
// them ran.
func verbRecorder(t *testing.T, called *string) *resourceHandler {
	r, err := NewResource("/things", ResourceOptions{InstName: InstName("thing")})
	require.NoError(t, err)
	record := func(name string) verb {
		return func(ctx *context) (interface{}, error) {
			*called = name
			return restdata.Rep{"verb": name}, nil
		}
	}
	return &resourceHandler{
		Resource: r,
		Index:    record("index"),
		Create:   record("create"),
		Read:     record("read"),
		Update:   record("update"),
		Delete:   record("delete"),
	}
}

func TestDoRequestTable(t *testing.T) {
	tests := []struct {
		method string
		id     string
		verb   string
		name   string
	}{
		{"GET", "x", "read", "thing"},
		{"PUT", "x", "update", "thing"},
		{"DELETE", "x", "delete", "thing"},
		{"GET", "", "index", "things"},
		{"POST", "", "create", "things"},
		{"DELETE", "", "delete", "things"},
		{"POST", "x", "", ""},
		{"PUT", "", "", ""},
		{"PATCH", "x", "", ""},
	}
	for _, test := range tests {
		var called string
		h := verbRecorder(t, &called)
		resp := h.DoRequest(test.method, &context{ID: test.id})
		assert.Equal(t, test.verb, called, "%s %q", test.method, test.id)
		if test.verb == "" {
			assert.Equal(t, 1, resp.Status)
			assert.Equal(t, restdata.NotImplemented, resp.ErrorCode)
			assert.Equal(t, http.StatusNotFound, restdata.HTTPResponseStatusCode(resp))
		} else {
			assert.Equal(t, 0, resp.Status)
			assert.Equal(t, test.name, resp.Name)
			assert.Equal(t, restdata.Rep{"verb": test.verb}, resp.Rep)
		}
	}
}

func TestDoRequestMissingVerb(t *testing.T) {
	var called string
	h := verbRecorder(t, &called)
	h.Delete = nil
	resp := h.DoRequest("DELETE", &context{})
	assert.Equal(t, restdata.NotImplemented, resp.ErrorCode)
	assert.Equal(t, "", called)
}

func TestRespondCallbacks(t *testing.T) {
	var called string
	h := verbRecorder(t, &called)

	var successes, failures []restdata.Response
	ctx := &context{
		OnSuccess: func(r restdata.Response) { successes = append(successes, r) },
		OnError:   func(r restdata.Response) { failures = append(failures, r) },
	}
	h.DoRequest("GET", ctx)
	assert.Len(t, successes, 1)
	assert.Len(t, failures, 0)

	h.Index = func(*context) (interface{}, error) {
		return nil, restdata.ErrBadRequest("nope")
	}
	resp := h.DoRequest("GET", ctx)
	assert.Len(t, successes, 1)
	if assert.Len(t, failures, 1) {
		assert.Equal(t, resp, failures[0])
	}
	assert.Equal(t, restdata.BadRequest, resp.ErrorCode)
	assert.Equal(t, "nope", resp.ErrorMessage)
}

func TestRespondTransformFailure(t *testing.T) {
	var called string
	h := verbRecorder(t, &called)
	h.Transform = func(*context, interface{}) (interface{}, error) {
		panic("bad document")
	}
	resp := h.DoRequest("GET", &context{ID: "x"})
	assert.Equal(t, 1, resp.Status)
	assert.Equal(t, restdata.UnknownError, resp.ErrorCode)
	assert.Equal(t, unknownErrorMessage, resp.ErrorMessage)
	assert.Equal(t, "thing", resp.Name)
	assert.Equal(t, restdata.Rep{}, resp.Rep)
	assert.Contains(t, resp.Map(), "thing")

	h.Transform = func(*context, interface{}) (interface{}, error) {
		return nil, errors.New("bad document")
	}
	resp = h.DoRequest("GET", &context{})
	assert.Equal(t, restdata.UnknownError, resp.ErrorCode)
	assert.Equal(t, http.StatusInternalServerError, restdata.HTTPResponseStatusCode(resp))
	assert.Nil(t, resp.Rep)
}

func TestRespondVerbPanic(t *testing.T) {
	var called string
	h := verbRecorder(t, &called)
	h.Read = func(*context) (interface{}, error) {
		panic("boom")
	}
	resp := h.DoRequest("GET", &context{ID: "x"})
	assert.Equal(t, restdata.UnknownError, resp.ErrorCode)
	assert.Contains(t, resp.ErrorMessage, "boom")
}

func TestRespondPaged(t *testing.T) {
	var called string
	h := verbRecorder(t, &called)
	paging := &restdata.Paging{PageSize: 3}
	h.Index = func(*context) (interface{}, error) {
		return paged{Items: []string{"a"}, Paging: paging}, nil
	}
	resp := h.DoRequest("GET", &context{})
	assert.Equal(t, []string{"a"}, resp.Rep)
	assert.Equal(t, paging, resp.Paging)
}

func TestRespondResourceName(t *testing.T) {
	var called string
	h := verbRecorder(t, &called)
	resp := h.DoRequest("GET", &context{ResourceName: "other"})
	assert.Equal(t, "other", resp.Name)

	h.Index = func(*context) (interface{}, error) { return nil, nil }
	resp = h.DoRequest("GET", &context{})
	assert.Equal(t, "", resp.Name)
	assert.Equal(t, map[string]interface{}{"status": 0}, resp.Map())
}

func TestToAPIError(t *testing.T) {
	assert.Equal(t, restdata.BadRequest, toAPIError(restdata.ErrBadRequest("x")).Code)
	assert.Equal(t, restdata.UnknownError, toAPIError(errors.New("x")).Code)
	assert.Equal(t, restdata.BadRequest, toAPIError(mediamanager.ErrNoSuchImage{OID: "x"}).Code)
}
