// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct a media
// manager service based on command-line flags.
package backend

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/diffeo/go-mediamanager/cache"
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/memory"
	"github.com/diffeo/go-mediamanager/postgres"
	"github.com/sirupsen/logrus"
)

// ErrReconfigured is returned when a backend that has already built
// its service is given a different configuration.
var ErrReconfigured = errors.New("backend: already constructed with a different configuration")

// ErrUnknownImplementation is returned from Set() for an unknown
// implementation name.
type ErrUnknownImplementation struct {
	Implementation string
}

func (err ErrUnknownImplementation) Error() string {
	return fmt.Sprintf("unknown media manager backend %q", err.Implementation)
}

// Implementations lists the known backend implementation names.
var Implementations = []string{"memory", "postgres"}

// Backend describes user-visible parameters to store media manager
// data.  This implements the flag.Value interface, and so a typical
// use is
//
//     func main() {
//         backend := backend.Backend{Implementation: "memory"}
//         flag.Var(&backend, "backend", "impl:address of media storage")
//         flag.Parse()
//         service, err := backend.Service()
//     }
//
// The service is built once.  Later calls to Service() return the
// same instance, and changing the configuration afterwards is an
// error.
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string

	// Cache wraps the service in an oid-based cache.
	Cache bool

	// Log receives diagnostics from the cache.  If nil, uses the
	// logrus standard logger.
	Log logrus.FieldLogger

	lock    sync.Mutex
	built   string
	service mediamanager.Service
	cache   *cache.Cache
}

// Service returns the media manager service for this backend,
// creating it on the first call.  If the configuration has changed
// since the service was created, returns ErrReconfigured.
func (b *Backend) Service() (mediamanager.Service, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	config := b.config()
	if b.service != nil {
		if config != b.built {
			return nil, ErrReconfigured
		}
		return b.service, nil
	}

	var (
		service mediamanager.Service
		err     error
	)
	switch b.Implementation {
	case "memory":
		service = memory.New()
	case "postgres":
		service, err = postgres.New(b.Address)
	default:
		err = ErrUnknownImplementation{Implementation: b.Implementation}
	}
	if err != nil {
		return nil, err
	}
	if b.Cache {
		b.cache = cache.New(service, b.Log)
		service = b.cache
	}
	b.service = service
	b.built = config
	return service, nil
}

// Close releases the cache's changes feed, if there is a cache.
func (b *Backend) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.cache == nil {
		return nil
	}
	return b.cache.Close()
}

// config summarizes everything that determines the built service.
func (b *Backend) config() string {
	return fmt.Sprintf("%s cache=%v", b.String(), b.Cache)
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Neither Set nor
// Service attempt to validate the b.Address part of the string
// before connecting.  Once the service is built, Set fails with
// ErrReconfigured unless it names the same configuration.
func (b *Backend) Set(param string) error {
	var impl, address string
	parts := strings.SplitN(param, ":", 2)
	switch len(parts) {
	case 1:
		impl = parts[0]
	case 2:
		impl, address = parts[0], parts[1]
	}
	if impl == "" {
		return errors.New("must specify a backend type")
	}
	known := false
	for _, name := range Implementations {
		if impl == name {
			known = true
		}
	}
	if !known {
		return ErrUnknownImplementation{Implementation: impl}
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	if b.service != nil && (impl != b.Implementation || address != b.Address) {
		return ErrReconfigured
	}
	b.Implementation = impl
	b.Address = address
	return nil
}
