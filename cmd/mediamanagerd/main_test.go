// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/diffeo/go-mediamanager/memory"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigYaml(t *testing.T) {
	f, err := ioutil.TempFile("", "mediamanagerd")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	_, err = f.WriteString("backend: postgres\ndbhost: db.example.com\nport: 9000\ncache: true\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	config := defaultConfig()
	require.NoError(t, loadConfigYaml(f.Name(), &config))
	assert.Equal(t, "postgres", config.Backend)
	assert.Equal(t, "db.example.com", config.DBHost)
	assert.Equal(t, 9000, config.Port)
	assert.True(t, config.Cache)
	// Unset keys keep their defaults
	assert.Equal(t, "plm-media-manager", config.DBName)
	assert.Equal(t, 5432, config.DBPort)
}

func TestNewBackend(t *testing.T) {
	config := defaultConfig()
	b, err := newBackend(config, nil)
	if assert.NoError(t, err) {
		assert.Equal(t, "memory", b.String())
	}

	config.Backend = "postgres"
	config.DBHost = "db.example.com"
	b, err = newBackend(config, nil)
	if assert.NoError(t, err) {
		assert.Equal(t, "//db.example.com:5432/plm-media-manager", b.Address)
	}

	config.Backend = "postgres:dbname=other"
	b, err = newBackend(config, nil)
	if assert.NoError(t, err) {
		assert.Equal(t, "dbname=other", b.Address)
	}

	config.Backend = "couchdb"
	_, err = newBackend(config, nil)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	logger := logrus.New()
	logger.Out = ioutil.Discard
	handler, shutdown, err := NewHandler(memory.New(), logger, logger)
	require.NoError(t, err)
	defer shutdown()

	req := httptest.NewRequest("GET", "/v0/tags", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, restdata.V0JSONMediaType, rec.Header().Get("Content-Type"))

	req = httptest.NewRequest("GET", "/metrics", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "diffeo_mediamanager_http_requests_total"))
}
