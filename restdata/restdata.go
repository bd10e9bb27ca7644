// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines common data structures shared between the
// restserver and restclient packages.  JSON encodings of these are
// passed across the wire as the
// application/vnd.diffeo.mediamanager.v0+json MIME type.
//
// API Usage
//
// Every resource lives under the /v0 prefix:
//
//     /v0/images[/$id]
//     /v0/importers[/$id]
//     /v0/importers/$id/images
//     /v0/tags
//     /v0/tagger
//     /v0/storage/synchronizers[/$id]
//     /v0/storage/changes-feed[/$id]
//
// Every response, successful or not, is a JSON object of the form
//
//     {
//         "status": 0,
//         "images": [ ... ],
//         "paging": { ... }
//     }
//
// status is 0 on success and 1 on failure.  Failures carry
// "error_code" and "error_message"; see ErrorCode for the codes and
// the HTTP statuses they map to.  The representation is keyed by the
// resource's collection name ("images") for collection requests and
// by its instance name ("image") for requests naming one instance.
// "paging" appears only on paged collections.
//
// Encoding Considerations
//
// Identifiers in representations and in URLs are opaque strings
// beginning with "$".  Clients must not interpret them, and must
// pass them back exactly as received.
//
// Paging cursors are opaque URL-safe strings.  The string "-1" in a
// next or previous cursor means there is no page in that direction.
// A cursor the server cannot decode is treated as the first page.
//
// Timestamps, when they appear, are represented in JSON as RFC 3339
// strings, "2012-03-04T05:06:07.890Z".
//
// Notifications
//
// The /notifications WebSocket endpoint carries Notification
// objects.  Clients subscribe by sending
//
//     {"resource": "_client", "event": "subscribe",
//      "data": {"resource": "/importers"}}
//
// and then receive events such as "import.started" on that
// resource.
package restdata

// V0JSONMediaType is the preferred, most specific MIME type for the
// JSON representation of version 0 of this interface.
const V0JSONMediaType = "application/vnd.diffeo.mediamanager.v0+json"

// JSONMediaType requests the most recent version of the JSON
// representation.
const JSONMediaType = "application/vnd.diffeo.mediamanager+json"

// PathPrefix is the URL path prefix of version 0 of the API.
const PathPrefix = "/v0"

// Rep is the external representation of one document.  A key that is
// absent is "undefined"; it is never present with a nil value.
type Rep map[string]interface{}

// Paging is the paging envelope of a paged collection response.
type Paging struct {
	Cursors  PagingCursors `json:"cursors"`
	PageSize int           `json:"page_size"`
}

// PagingCursors are the opaque cursors in a Paging envelope.  Start
// and End are absent for an empty page.  Next and Previous are
// NoCursor when there is no page in that direction.
type PagingCursors struct {
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
}

// NoCursor is the cursor value meaning "no further page".
const NoCursor = "-1"

// TagAction is the payload of one tagger action.
type TagAction struct {
	Images []string `json:"images" mapstructure:"images"`
	Tags   []string `json:"tags" mapstructure:"tags"`
}

// TaggerRequest is the body of POST /v0/tagger.  Exactly one of the
// actions must be present.
type TaggerRequest struct {
	Add     *TagAction `json:"add,omitempty" mapstructure:"add"`
	Replace *TagAction `json:"replace,omitempty" mapstructure:"replace"`
	Remove  *TagAction `json:"remove,omitempty" mapstructure:"remove"`
}

// ImportRequest is the body of POST /v0/importers.
type ImportRequest struct {
	ImportDir string `json:"import_dir" mapstructure:"import_dir"`
	AppID     string `json:"app_id,omitempty" mapstructure:"app_id"`
	Recursive bool   `json:"recursive,omitempty" mapstructure:"recursive"`
}

// ChangesFeedRequest is the body of POST /v0/storage/changes-feed.
type ChangesFeedRequest struct {
	Since int64  `json:"since,omitempty" mapstructure:"since"`
	AppID string `json:"app_id,omitempty" mapstructure:"app_id"`
}

// Notification is one message on the notifications channel.
type Notification struct {
	Resource string      `json:"resource"`
	Event    string      `json:"event"`
	Data     interface{} `json:"data,omitempty"`
}

// ClientResource is the Notification resource a client uses to send
// control messages.
const ClientResource = "_client"

// NotificationsResource is the Notification resource the server uses
// for its own messages.
const NotificationsResource = "/notifications"
