package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acc-network/relay/utils"
	"github.com/stretchr/testify/require"
)

func TestUtils(t *testing.T) {
	testValidateEndpoint(t)
	testRetry(t)
}

func testValidateEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expect      string
		errContains string
	}{
		{name: "with scheme and port", input: "http://relay:7070", expect: "http://relay:7070"},
		{name: "https with path", input: "https://acme.com/callback/", expect: "https://acme.com/callback"},
		{name: "no scheme adds http", input: "localhost:7070", expect: "http://localhost:7070"},
		{name: "trims whitespace", input: "  https://trim.me  ", expect: "https://trim.me"},
		{name: "empty", input: "", errContains: "url is empty"},
		{name: "unsupported scheme", input: "ftp://acme.com", errContains: "unsupported scheme"},
		{name: "missing host", input: "http://", errContains: "missing host"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			validated, err := utils.ValidateEndpoint(tc.input)
			if tc.errContains != "" {
				require.ErrorContains(t, err, tc.errContains)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, validated)
		})
	}
}

func testRetry(t *testing.T) {
	t.Run("retry", func(t *testing.T) {
		calls := 0
		err := utils.Retry(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)

		boom := errors.New("boom")
		err = utils.Retry(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			return false, boom
		})
		require.ErrorIs(t, err, boom)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err = utils.Retry(ctx, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorContains(t, err, "timed out")
	})
}
