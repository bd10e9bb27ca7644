// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"github.com/diffeo/go-mediamanager/restdata"
)

// StartSync starts a synchronization pass.  The returned state is
// the session's state as of its creation; its events arrive on the
// server's notification channel.
func (c *Client) StartSync() (restdata.Rep, error) {
	resp, err := c.Call("POST", "storage/synchronizers", map[string]interface{}{}, nil)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

// Synchronizer fetches the state of a synchronization session.
func (c *Client) Synchronizer(id string) (restdata.Rep, error) {
	resp, err := c.Call("GET", "storage/synchronizers/{id}", map[string]interface{}{"id": id}, nil)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

// OpenChangesFeed opens a changes feed.  Changes are published on
// the server's notification channel until the feed is closed.  It
// returns the feed's id and the sequence number it starts after.
func (c *Client) OpenChangesFeed(req restdata.ChangesFeedRequest) (id string, since int64, err error) {
	resp, err := c.Call("POST", "storage/changes-feed", map[string]interface{}{}, req)
	if err != nil {
		return "", 0, err
	}
	rep := toRep(resp.Rep)
	id, _ = rep["id"].(string)
	switch n := rep["since"].(type) {
	case int64:
		since = n
	case uint64:
		since = int64(n)
	case float64:
		since = int64(n)
	}
	return restdata.DecodeID(id), since, nil
}

// CloseChangesFeed closes a changes feed.
func (c *Client) CloseChangesFeed(id string) error {
	_, err := c.Call("DELETE", "storage/changes-feed/{id}", map[string]interface{}{"id": id}, nil)
	return err
}
