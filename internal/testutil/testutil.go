// Package testutil provides shared helpers for tests across the module.
// It wraps common assertion patterns over the structured error package so
// individual tests stay short.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// RequireErrorCode fails the test immediately unless err is a [*iderr.Error]
// carrying the expected code.
func RequireErrorCode(t *testing.T, err error, code iderr.Code) {
	t.Helper()

	require.Error(t, err)
	e, ok := iderr.AsError(err)
	require.True(t, ok, "error %v is not a *iderr.Error", err)
	require.Equal(t, code, e.Code, "error: %v", err)
}

// AssertErrorCode records a failure unless err is a [*iderr.Error] carrying
// the expected code, but lets the test continue.
func AssertErrorCode(t *testing.T, err error, code iderr.Code) bool {
	t.Helper()

	if !assert.Error(t, err) {
		return false
	}
	e, ok := iderr.AsError(err)
	if !assert.True(t, ok, "error %v is not a *iderr.Error", err) {
		return false
	}
	return assert.Equal(t, code, e.Code, "error: %v", err)
}

// TempConfigFile writes content to a file with the given name inside a
// test-scoped temporary directory and returns its path.
func TempConfigFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
