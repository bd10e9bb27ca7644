// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an HTTP REST client that talks to the
// media manager server in the "restserver" package.
//
// The server in github.com/diffeo/go-mediamanager/cmd/mediamanagerd
// runs a compatible REST server.  Call New() with the base URL of
// that service; for instance,
//
//     c, err := restclient.New("http://localhost:5984/v0/")
//
// Every method returns documents in their external representation,
// as the server sends them.  A failure reported by the server is
// returned as a restdata.APIError.
package restclient

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// ErrNoBaseURL is returned from New() if the base URL is empty or not
// absolute.
var ErrNoBaseURL = errors.New("restclient: base URL must be an absolute URL")

// Client talks to one media manager REST server.
type Client struct {
	resource
}

// New creates a new client that speaks to an external REST server.
// baseURL is the root of the API, including its version prefix.
func New(baseURL string) (*Client, error) {
	return NewWithClient(baseURL, nil)
}

// NewWithClient creates a new client that makes its requests through
// a specific HTTP client.  If client is nil, uses
// http.DefaultClient.
func NewWithClient(baseURL string, client *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	// Resolve relative templates below the base, not beside it
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, ErrNoBaseURL
	}
	return &Client{resource: resource{URL: u, Client: client}}, nil
}
