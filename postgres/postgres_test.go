// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"os"
	"testing"

	"github.com/diffeo/go-mediamanager/mediamanager/mediamanagertest"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic media manager tests against a freshly
// migrated PostgreSQL database per test.
//
// This uses an empty string as the connection string.  This means
// that, when you run "go test", you must set environment variables as
// described in
// http://www.postgresql.org/docs/current/static/libpq-envars.html
type Suite struct {
	mediamanagertest.Suite
	pg *pgService
}

func (s *Suite) SetupTest() {
	s.Suite.SetupTest()
	service, err := NewWithClock("", s.Clock)
	s.Require().NoError(err)
	s.pg = service.(*pgService)
	s.Require().NoError(Drop(s.pg.db))
	s.Require().NoError(Upgrade(s.pg.db))
	s.Service = service
}

func (s *Suite) TearDownTest() {
	s.NoError(s.pg.db.Close())
	s.Suite.TearDownTest()
}

func TestMediaManager(t *testing.T) {
	if os.Getenv("PGHOST") == "" && os.Getenv("PGDATABASE") == "" {
		t.Skip("set PGHOST or PGDATABASE to run the PostgreSQL tests")
	}
	suite.Run(t, &Suite{})
}
