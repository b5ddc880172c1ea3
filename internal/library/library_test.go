package library

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCachesFirstResult(t *testing.T) {
	calls := 0
	r := &Resolver{Load: func(_ context.Context, _, path string) (string, error) {
		calls++
		return "markers", nil
	}}

	lib, err := r.Resolve(context.Background(), "example.com/markers")
	require.NoError(t, err)
	assert.Equal(t, Library{Path: "example.com/markers", Name: "markers"}, lib)

	again, err := r.Resolve(context.Background(), "example.com/other")
	require.NoError(t, err)
	assert.Equal(t, lib, again)
	assert.Equal(t, 1, calls)
}

func TestResolveFailureIsUnresolved(t *testing.T) {
	r := &Resolver{Load: func(context.Context, string, string) (string, error) {
		return "", errors.New("no required module provides package")
	}}

	_, err := r.Resolve(context.Background(), "example.com/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), "example.com/missing")

	_, err = r.Resolve(context.Background(), "example.com/missing")
	assert.ErrorIs(t, err, ErrUnresolved, "failure is cached too")
}

func TestDefault(t *testing.T) {
	lib := Default()
	assert.Equal(t, DefaultPath, lib.Path)
	assert.Equal(t, "pre", lib.Name)
	assert.Equal(t, "github.com/roach88/pre (pre)", lib.String())
}
