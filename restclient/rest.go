// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"io"
	"io/ioutil"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/jtacoma/uritemplates"
	"github.com/ugorji/go/codec"
)

// resource is any object that has a URL and an HTTP client to reach
// it with.
type resource struct {
	URL    *url.URL
	Client *http.Client
}

// Template expands a URI template relative to the resource's URL.
// String values of variables named "id" or ending in "_id" are
// encoded as API identifiers.  A string list is sent comma-separated;
// if it is named "ids", each of its elements is encoded as an API
// identifier first.
func (r *resource) Template(template string, vars map[string]interface{}) (*url.URL, error) {
	// Build the template object
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}

	// Encode all of the identifiers if required
	for k, v := range vars {
		switch vv := v.(type) {
		case string:
			if isIDVar(k) {
				vars[k] = restdata.EncodeID(vv)
			}
		case []string:
			if k == "ids" {
				encoded := make([]string, len(vv))
				for i, s := range vv {
					encoded[i] = restdata.EncodeID(s)
				}
				vv = encoded
			}
			vars[k] = strings.Join(vv, ",")
		}
	}

	// Expand the template to produce a string
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}

	// Return the parsed URL of the result, relative to ourselves
	return r.URL.Parse(expanded)
}

func isIDVar(name string) bool {
	return name == "id" || (len(name) > 3 && name[len(name)-3:] == "_id")
}

// Do performs some HTTP action.  If in is non-nil, the request data is
// serialized and sent as the body of, for instance, a POST request.
// Returns the response envelope; if the envelope reports a failure,
// also returns the error it describes.
func (r *resource) Do(method string, url *url.URL, in interface{}) (resp restdata.Response, err error) {
	json := &codec.JsonHandle{}

	// Set up the body as serialized JSON, if there is one
	var body io.Reader
	if in != nil {
		reader, writer := io.Pipe()
		encoder := codec.NewEncoder(writer, json)
		finished := make(chan error)
		go func() {
			err := encoder.Encode(in)
			err = firstError(err, writer.Close())
			finished <- err
		}()
		defer func() {
			err = firstError(err, <-finished)
		}()
		body = reader
	}

	// Create the request and set headers
	req, err := http.NewRequest(method, url.String(), body)
	if err != nil {
		return resp, err
	}
	if in != nil {
		req.Header.Set("Content-Type", restdata.V0JSONMediaType)
	}
	req.Header.Set("Accept", restdata.V0JSONMediaType)

	// Actually do the request
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	httpResp, err := client.Do(req)
	if err != nil {
		return resp, err
	}
	defer func() {
		err = firstError(err, httpResp.Body.Close())
	}()

	// Always collect the entire body; it is needed as a fallback
	// if it is not an envelope
	data, err := ioutil.ReadAll(httpResp.Body)
	if err != nil {
		return resp, err
	}
	if !isJSON(httpResp.Header.Get("Content-Type")) || resp.UnmarshalJSON(data) != nil {
		return restdata.Response{}, ErrorHTTP{Response: httpResp, Body: string(data)}
	}
	return resp, resp.Err()
}

// isJSON determines whether a Content-Type: header names a JSON
// media type the envelope decoder understands.
func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "text/json", "application/json", restdata.JSONMediaType, restdata.V0JSONMediaType:
		return true
	}
	return false
}

// Call expands a URI template relative to the resource's URL and
// performs an HTTP action on the result.
func (r *resource) Call(method, template string, vars map[string]interface{}, in interface{}) (restdata.Response, error) {
	url, err := r.Template(template, vars)
	if err != nil {
		return restdata.Response{}, err
	}
	return r.Do(method, url, in)
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint that do not carry a response envelope.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	return e.Response.Status
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}

// The envelope's representation arrives as generic decoded JSON.
// These helpers reshape it.

func toRep(v interface{}) restdata.Rep {
	if m, ok := v.(map[string]interface{}); ok {
		return restdata.Rep(m)
	}
	return restdata.Rep{}
}

func toReps(v interface{}) []restdata.Rep {
	list, _ := v.([]interface{})
	result := make([]restdata.Rep, len(list))
	for i, item := range list {
		result[i] = toRep(item)
	}
	return result
}

func toStrings(v interface{}) []string {
	list, _ := v.([]interface{})
	result := make([]string, 0, len(list))
	for _, item := range list {
		switch s := item.(type) {
		case string:
			result = append(result, s)
		case []byte:
			result = append(result, string(s))
		}
	}
	return result
}

