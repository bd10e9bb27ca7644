// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"strconv"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
)

// Import starts importing a directory of images.  It returns the new
// importer immediately; progress is reported on the server's
// notification channel.
func (c *Client) Import(req restdata.ImportRequest) (restdata.Rep, error) {
	resp, err := c.Call("POST", "importers", map[string]interface{}{}, req)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

// Importer fetches one importer.
func (c *Client) Importer(id string) (restdata.Rep, error) {
	resp, err := c.Call("GET", "importers/{id}", map[string]interface{}{"id": id}, nil)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

// RecentImporters fetches the n most recently created importers.
func (c *Client) RecentImporters(n int) ([]restdata.Rep, error) {
	vars := map[string]interface{}{"n": strconv.Itoa(n)}
	resp, err := c.Call("GET", "importers{?n}", vars, nil)
	if err != nil {
		return nil, err
	}
	return toReps(resp.Rep), nil
}

// ImportersPage fetches one page of importers, newest first.  Pass
// an empty cursor for the first page, then the cursors from the
// returned paging envelope.  A page size of zero uses the server's
// default.
func (c *Client) ImportersPage(cursor string, pageSize int) ([]restdata.Rep, *restdata.Paging, error) {
	vars := map[string]interface{}{"cursor": cursor}
	if pageSize > 0 {
		vars["page_size"] = strconv.Itoa(pageSize)
	}
	resp, err := c.Call("GET", "importers{?cursor,page_size}", vars, nil)
	if err != nil {
		return nil, nil, err
	}
	return toReps(resp.Rep), resp.Paging, nil
}

// UpdateImporter applies a patch to an importer.  If rev is
// non-empty, the update fails with a conflict unless it is the
// importer's current revision.
func (c *Client) UpdateImporter(id, rev string, patch restdata.Rep) (restdata.Rep, error) {
	body := restdata.Rep{}
	for k, v := range patch {
		body[k] = v
	}
	if rev != "" {
		body["_rev"] = rev
	}
	resp, err := c.Call("PUT", "importers/{id}", map[string]interface{}{"id": id}, body)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

// ImporterImages fetches an importer with the images it imported,
// in import order, under its "images" key.
func (c *Client) ImporterImages(id string, state mediamanager.TrashState) (restdata.Rep, error) {
	text, err := state.MarshalText()
	if err != nil {
		return nil, err
	}
	vars := map[string]interface{}{"id": id, "trashState": string(text)}
	resp, err := c.Call("GET", "importers/{id}/images{?trashState}", vars, nil)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}
