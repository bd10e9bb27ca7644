// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package backend

import (
	"flag"
	"testing"

	"github.com/diffeo/go-mediamanager/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	var b Backend
	if assert.NoError(t, b.Set("memory")) {
		assert.Equal(t, "memory", b.Implementation)
		assert.Equal(t, "", b.Address)
		assert.Equal(t, "memory", b.String())
	}

	if assert.NoError(t, b.Set("postgres://db/media?sslmode=disable")) {
		assert.Equal(t, "postgres", b.Implementation)
		assert.Equal(t, "//db/media?sslmode=disable", b.Address)
		assert.Equal(t, "postgres://db/media?sslmode=disable", b.String())
	}

	assert.Equal(t, ErrUnknownImplementation{Implementation: "couchdb"}, b.Set("couchdb:localhost"))
	assert.Error(t, b.Set(""))
	assert.Error(t, b.Set(":foo"))
}

func TestFlag(t *testing.T) {
	b := Backend{Implementation: "memory"}
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	flags.Var(&b, "backend", "impl:address of media storage")
	require.NoError(t, flags.Parse([]string{"-backend", "postgres:dbname=media"}))
	assert.Equal(t, "postgres", b.Implementation)
	assert.Equal(t, "dbname=media", b.Address)
}

func TestServiceOnce(t *testing.T) {
	b := Backend{Implementation: "memory"}
	s1, err := b.Service()
	require.NoError(t, err)
	s2, err := b.Service()
	require.NoError(t, err)
	assert.True(t, s1 == s2, "memory backend built twice")

	// Re-setting the same configuration is fine
	assert.NoError(t, b.Set("memory"))

	assert.Equal(t, ErrReconfigured, b.Set("postgres:dbname=media"))
	assert.Equal(t, "memory", b.Implementation)

	b.Cache = true
	_, err = b.Service()
	assert.Equal(t, ErrReconfigured, err)
}

func TestServiceCache(t *testing.T) {
	b := Backend{Implementation: "memory", Cache: true}
	s, err := b.Service()
	require.NoError(t, err)
	_, isCache := s.(*cache.Cache)
	assert.True(t, isCache, "service is a %T", s)
	assert.NoError(t, b.Close())
}

func TestServiceUnknown(t *testing.T) {
	b := Backend{Implementation: "couchdb"}
	_, err := b.Service()
	assert.Equal(t, ErrUnknownImplementation{Implementation: "couchdb"}, err)
}
