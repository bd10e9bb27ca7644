// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes a media manager backend as a REST
// service.  The restclient package is a matching client.
//
// The wire format is defined in the restdata package.
//
// HTTP Considerations
//
// Every response is a JSON envelope; see restdata.Response.  The HTTP
// status is derived from the envelope alone, so clients may ignore
// it.  Clients should use the standard HTTP Accept: header to request
// a specific format.  See "MIME Types" below.
//
// This interface does not (currently) support HTTP caching or
// authentication headers.
//
// MIME Types
//
// This interface understands MIME types as follows:
//
//     application/vnd.diffeo.mediamanager.v0+json
//
// JSON representation of version 0 of this interface.
//
//     application/vnd.diffeo.mediamanager+json
//     application/json
//     text/json
//
// JSON representation of latest version of this interface.
//
// URL Scheme
//
// Resources are described by Resource values, which may nest: the
// images of one importer are at /v0/importers/$id/images.  Instance
// identifiers always begin with "$".  The following URLs are
// defined:
//
//     /v0/images                       GET, DELETE ?trashState=
//     /v0/images/$id                   GET, PUT [?in_trash=], DELETE
//     /v0/importers                    GET [?n= | ?cursor=&page_size=], POST
//     /v0/importers/$id                GET, PUT
//     /v0/importers/$id/images         GET [?trashState=]
//     /v0/tags                         GET [?images=$a,$b]
//     /v0/tagger                       POST
//     /v0/storage/synchronizers        POST
//     /v0/storage/synchronizers/$id    GET
//     /v0/storage/changes-feed         POST
//     /v0/storage/changes-feed/$id     DELETE
//
// Anything else on a known resource is NOT_IMPLEMENTED.
package restserver
