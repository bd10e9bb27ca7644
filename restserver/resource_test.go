// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const capture = `\/(\$[0-9a-zA-Z\$\-_@\.\&\+]+)`

func TestNewResourceNames(t *testing.T) {
	r, err := NewResource("/images", ResourceOptions{
		PathPrefix: "/v0",
		InstName:   InstName("image"),
	})
	require.NoError(t, err)
	assert.Equal(t, "images", r.Name)
	assert.Equal(t, "image", r.InstName)
	assert.Equal(t, "/images", r.Path)
	assert.Equal(t, "/v0", r.PathPrefix)
	assert.Nil(t, r.Sub)

	r, err = NewResource("/storage/changes-feed", ResourceOptions{})
	require.NoError(t, err)
	assert.Equal(t, "changes-feed", r.Name)
	assert.Equal(t, "changes-feed", r.InstName)

	r, err = NewResource("", ResourceOptions{ResourceName: "anon"})
	require.NoError(t, err)
	assert.Equal(t, "anon", r.Name)

	r, err = NewResource("/tags", ResourceOptions{InstName: InstName("")})
	require.NoError(t, err)
	assert.Equal(t, "", r.InstName)
}

func TestNewResourceCycle(t *testing.T) {
	a, err := NewResource("/a", ResourceOptions{})
	require.NoError(t, err)
	b, err := NewResource("/b", ResourceOptions{SubResource: a})
	require.NoError(t, err)
	a.Sub = b

	_, err = NewResource("/c", ResourceOptions{SubResource: a})
	assert.Equal(t, ErrCyclicResource, err)
}

func TestFullPath(t *testing.T) {
	r, err := newImportersImagesResource("/v0")
	require.NoError(t, err)
	assert.Equal(t, "/importers/images", r.FullPath())
	assert.Equal(t, 3, r.Depth())
	assert.Equal(t, "importer", r.Sub.InstName)
}

func TestParseRequestType(t *testing.T) {
	for i, name := range []string{"create", "index", "read", "update", "delete", "collection", "instance"} {
		rt, err := ParseRequestType(name)
		if assert.NoError(t, err) {
			assert.Equal(t, RequestType(i), rt)
			assert.Equal(t, name, rt.String())
		}
	}
	_, err := ParseRequestType("destroy")
	assert.Equal(t, ErrInvalidRequestType, err)
}

func TestRequestPathSimple(t *testing.T) {
	r, err := NewResource("/images", ResourceOptions{PathPrefix: "/v0"})
	require.NoError(t, err)

	tests := []struct {
		rt      RequestType
		pattern string
	}{
		{CreateRequest, `^\/v0\/images\/?$`},
		{IndexRequest, `^\/v0\/images\/?$`},
		{CollectionRequest, `^\/v0\/images\/?$`},
		{ReadRequest, `^\/v0\/images` + capture + `$`},
		{DeleteRequest, `^\/v0\/images` + capture + `$`},
		{InstanceRequest, `^\/v0\/images` + capture + `$`},
		{UpdateRequest, `^\/v0\/images` + capture + `\/?$`},
	}
	for _, test := range tests {
		assert.Equal(t, test.pattern, r.RequestPath(test.rt).String(), test.rt.String())
	}

	collection := r.RequestPath(CollectionRequest)
	assert.True(t, collection.MatchString("/v0/images"))
	assert.True(t, collection.MatchString("/v0/images/"))
	assert.False(t, collection.MatchString("/v0/images/$abc"))
	assert.False(t, collection.MatchString("/x/v0/images"))

	instance := r.RequestPath(InstanceRequest)
	match := instance.FindStringSubmatch("/v0/images/$a-b_c@d.e&f+g")
	if assert.Len(t, match, 2) {
		assert.Equal(t, "$a-b_c@d.e&f+g", match[1])
	}
	assert.False(t, instance.MatchString("/v0/images/abc"))
	assert.False(t, instance.MatchString("/v0/images/$abc/"))
}

func TestRequestPathNested(t *testing.T) {
	r, err := newImportersImagesResource("/v0")
	require.NoError(t, err)

	assert.Equal(t, `^\/v0\/importers`+capture+`\/images\/?$`,
		r.RequestPath(IndexRequest).String())
	assert.Equal(t, `^\/v0\/importers`+capture+`\/images`+capture+`$`,
		r.RequestPath(ReadRequest).String())

	match := r.RequestPath(CollectionRequest).FindStringSubmatch("/v0/importers/$b1/images")
	if assert.Len(t, match, 2) {
		assert.Equal(t, "$b1", match[1])
	}
}

// TestRequestPathCaptureCount checks that an instance pattern has one
// capture per path-bearing level.
func TestRequestPathCaptureCount(t *testing.T) {
	var chain *Resource
	for depth := 1; depth <= 4; depth++ {
		var err error
		chain, err = NewResource("/level", ResourceOptions{SubResource: chain})
		require.NoError(t, err)
		assert.Equal(t, depth, chain.RequestPath(InstanceRequest).NumSubexp())
		assert.Equal(t, depth-1, chain.RequestPath(CollectionRequest).NumSubexp())
	}

	anon, err := NewResource("", ResourceOptions{SubResource: chain})
	require.NoError(t, err)
	assert.Equal(t, 4, anon.RequestPath(InstanceRequest).NumSubexp())
}

func TestRequestPathInvalid(t *testing.T) {
	r, err := NewResource("/images", ResourceOptions{})
	require.NoError(t, err)
	assert.Panics(t, func() { r.RequestPath(RequestType(99)) })
	assert.Panics(t, func() { r.RequestPath(RequestType(-1)) })
}

func TestImportersImagesNeedsLevels(t *testing.T) {
	api := &API{}

	r, err := NewResource("", ResourceOptions{PathPrefix: "/v0"})
	require.NoError(t, err)
	_, err = api.newImportersImagesHandler(r)
	assert.Equal(t, ErrMissingSubResource{Parent: r.Name, Want: "importers"}, err)

	importers, err := NewResource("/importers", ResourceOptions{InstName: InstName("importer")})
	require.NoError(t, err)
	r, err = NewResource("", ResourceOptions{PathPrefix: "/v0", SubResource: importers})
	require.NoError(t, err)
	_, err = api.newImportersImagesHandler(r)
	assert.Equal(t, ErrMissingSubResource{Parent: "importers", Want: "images"}, err)

	r, err = newImportersImagesResource("/v0")
	require.NoError(t, err)
	h, err := api.newImportersImagesHandler(r)
	if assert.NoError(t, err) {
		assert.NotNil(t, h.Index)
		assert.Equal(t, "importer", api.importersImagesName)
	}
}
