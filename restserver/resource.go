// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrCyclicResource is returned from NewResource if the sub-resource
// chain would loop back on itself.
var ErrCyclicResource = errors.New("resource chain contains a cycle")

// ErrInvalidRequestType is returned from ParseRequestType for an
// unrecognized request shape.
var ErrInvalidRequestType = errors.New("invalid request type")

// ErrMissingSubResource is returned when a composite resource is
// built without a level it needs below Parent.
type ErrMissingSubResource struct {
	Parent string
	Want   string
}

func (err ErrMissingSubResource) Error() string {
	return fmt.Sprintf("resource %q needs a %s sub-resource", err.Parent, err.Want)
}

// instIDPattern captures one sigil-prefixed instance identifier.
const instIDPattern = `\/(\$[0-9a-zA-Z\$\-_@\.\&\+]+)`

// RequestType is the shape of a request against a resource.
type RequestType int

const (
	// CreateRequest adds an instance to a collection.
	CreateRequest RequestType = iota

	// IndexRequest lists a collection.
	IndexRequest

	// ReadRequest fetches one instance.
	ReadRequest

	// UpdateRequest modifies one instance.
	UpdateRequest

	// DeleteRequest removes one instance.
	DeleteRequest

	// CollectionRequest is any request on the collection, the
	// same as CreateRequest or IndexRequest.
	CollectionRequest

	// InstanceRequest is any request on one instance, the same as
	// ReadRequest, UpdateRequest, or DeleteRequest.
	InstanceRequest

	numRequestTypes
)

var requestTypeNames = []string{
	"create", "index", "read", "update", "delete", "collection", "instance",
}

func (rt RequestType) String() string {
	if rt < 0 || rt >= numRequestTypes {
		return fmt.Sprintf("RequestType(%d)", int(rt))
	}
	return requestTypeNames[rt]
}

// ParseRequestType converts a request type name, such as "index", to
// a RequestType.
func ParseRequestType(name string) (RequestType, error) {
	for i, n := range requestTypeNames {
		if n == name {
			return RequestType(i), nil
		}
	}
	return 0, ErrInvalidRequestType
}

// collectionLike is true for shapes that address a collection.
func (rt RequestType) collectionLike() bool {
	return rt == CreateRequest || rt == IndexRequest || rt == CollectionRequest
}

// ResourceOptions holds the optional parts of a resource descriptor.
type ResourceOptions struct {
	// PathPrefix is prepended to the path of the root resource,
	// for instance "/v0".
	PathPrefix string

	// InstName is the response key used for a single instance.
	// If nil, the resource name is used.
	InstName *string

	// ResourceName names a resource that has no path.
	ResourceName string

	// SubResource is the next level down, as in
	// /importers/$id/images.
	SubResource *Resource
}

// InstName is a helper for building ResourceOptions.
func InstName(name string) *string {
	return &name
}

// Resource describes one REST resource: its path, the names its
// representations are returned under, and optionally a sub-resource.
// Resources are immutable once built.
type Resource struct {
	Path       string
	PathPrefix string
	Name       string
	InstName   string
	Sub        *Resource
}

// NewResource builds a resource descriptor.
func NewResource(path string, opts ResourceOptions) (*Resource, error) {
	r := &Resource{
		Path:       path,
		PathPrefix: opts.PathPrefix,
		Sub:        opts.SubResource,
	}
	if path != "" {
		parts := strings.Split(path, "/")
		r.Name = parts[len(parts)-1]
	} else {
		r.Name = opts.ResourceName
	}
	if opts.InstName != nil {
		r.InstName = *opts.InstName
	} else {
		r.InstName = r.Name
	}

	seen := map[*Resource]bool{r: true}
	for sub := r.Sub; sub != nil; sub = sub.Sub {
		if seen[sub] {
			return nil, ErrCyclicResource
		}
		seen[sub] = true
	}
	return r, nil
}

// FullPath concatenates the paths of this resource and all of its
// sub-resources, without the prefix or any instance ids.
func (r *Resource) FullPath() string {
	fp := ""
	for level := r; level != nil; level = level.Sub {
		fp += level.Path
	}
	return fp
}

// Depth is the number of levels in the chain, including r.
func (r *Resource) Depth() int {
	n := 0
	for level := r; level != nil; level = level.Sub {
		n++
	}
	return n
}

// RequestPath builds the regular expression that matches request
// paths of a given shape.  Each instance identifier in the path is a
// capture group.  Collection shapes still capture the identifier of
// every parent instance, since a sub-resource is only reachable
// through one.  Passing an invalid RequestType panics.
func (r *Resource) RequestPath(rt RequestType) *regexp.Regexp {
	if rt < 0 || rt >= numRequestTypes {
		panic(ErrInvalidRequestType)
	}
	var b strings.Builder
	b.WriteString("^")
	b.WriteString(quotePath(r.PathPrefix))
	for level := r; level != nil; level = level.Sub {
		if level.Path != "" {
			b.WriteString(quotePath(level.Path))
			if !rt.collectionLike() || level.Sub != nil {
				b.WriteString(instIDPattern)
			}
		}
	}
	if rt.collectionLike() || rt == UpdateRequest {
		b.WriteString(`\/?`)
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// quotePath escapes a literal path for use in a regular expression.
func quotePath(path string) string {
	return strings.Replace(regexp.QuoteMeta(path), "/", `\/`, -1)
}
