// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, config.Server.Addr)
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concierge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
cache:
  capacity: 500
  backend: none
escalation:
  complexity_threshold: 0.9
`), 0o600))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, 500, config.Cache.Capacity)
	assert.Equal(t, "none", config.Cache.Backend)
	assert.InDelta(t, 0.9, config.Escalation.ComplexityThreshold, 1e-9)
	// Untouched sections keep defaults.
	assert.Equal(t, 5, config.Resilience.FailureThreshold)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concierge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))

	t.Setenv("CONCIERGE_ADDR", ":7070")
	t.Setenv("CONCIERGE_CACHE_TTL", "5m")
	t.Setenv("CONCIERGE_SEMANTIC_CERTAINTY", "0.85")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", config.Server.Addr)
	assert.Equal(t, 5*time.Minute, config.Cache.TTL)
	assert.InDelta(t, 0.85, config.Semantic.CertaintyFloor, 1e-9)
}

func TestLoad_InvalidYAMLRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a: mapping"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_CrossFieldRules(t *testing.T) {
	badger := Default()
	badger.Cache.BadgerPath = ""
	assert.Error(t, badger.Validate(), "badger backend requires a path")

	redis := Default()
	redis.Cache.Backend = "redis"
	redis.Cache.RedisURL = ""
	assert.Error(t, redis.Validate(), "redis backend requires a URL")

	noProviders := Default()
	noProviders.Providers.OpenAIEnabled = false
	noProviders.Providers.OllamaEnabled = false
	assert.Error(t, noProviders.Validate())

	noHost := Default()
	noHost.Semantic.WeaviateHost = ""
	assert.Error(t, noHost.Validate())
}

func TestValidate_FieldConstraints(t *testing.T) {
	config := Default()
	config.Logging.Level = "verbose"
	assert.Error(t, config.Validate())

	config = Default()
	config.Resilience.FailureThreshold = 0
	assert.Error(t, config.Validate())

	config = Default()
	config.Semantic.CertaintyFloor = 1.5
	assert.Error(t, config.Validate())
}
