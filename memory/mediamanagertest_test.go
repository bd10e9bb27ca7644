// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"testing"

	"github.com/diffeo/go-mediamanager/mediamanager/mediamanagertest"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic media manager tests against a fresh
// in-memory backend per test.
type Suite struct {
	mediamanagertest.Suite
}

// SetupTest creates the backend.
func (s *Suite) SetupTest() {
	s.Suite.SetupTest()
	s.Service = NewWithClock(s.Clock)
}

// TestMediaManager runs the generic media manager tests.
func TestMediaManager(t *testing.T) {
	suite.Run(t, &Suite{})
}
