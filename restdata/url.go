// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"strings"
)

// IDSigil begins every identifier the API exposes.
const IDSigil = "$"

// EncodeID turns a store identifier into an API identifier by
// prefixing it with the sigil.  Identifiers that already carry the
// sigil, and the empty string, are returned unchanged.
func EncodeID(id string) string {
	if id == "" || strings.HasPrefix(id, IDSigil) {
		return id
	}
	return IDSigil + id
}

// DecodeID is the dual of EncodeID.  It strips one leading sigil, if
// present.
func DecodeID(id string) string {
	return strings.TrimPrefix(id, IDSigil)
}

// DecodeIDs decodes every identifier in a list.
func DecodeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = DecodeID(strings.TrimSpace(id)); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ParseIDList splits a comma-separated list of API identifiers, as
// found in a URL path segment, into store identifiers.
func ParseIDList(s string) []string {
	return DecodeIDs(strings.Split(s, ","))
}
