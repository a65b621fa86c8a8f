package trust

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKindMatching(t *testing.T) {
	err := ErrRoleNotFound("ci-role").WithOperation("apply")

	require.True(t, IsKind(err, KindRoleNotFound))
	require.False(t, IsKind(err, KindAccessDenied))
	require.True(t, errors.Is(err, ErrRoleNotFound("other-role")), "Is matches by kind")

	wrapped := fmt.Errorf("reconcile: %w", err)
	require.True(t, IsKind(wrapped, KindRoleNotFound))
}

func TestErrorRetryable(t *testing.T) {
	require.True(t, IsRetryable(ErrServiceUnavailable("throttled")))
	require.False(t, IsRetryable(ErrAccessDenied("nope")))
	require.False(t, IsRetryable(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := ErrAccessDenied("caller is not authorized").
		WithRole("ci-role").
		WithCause(errors.New("api says no"))

	msg := err.Error()
	require.Contains(t, msg, "access_denied")
	require.Contains(t, msg, `"ci-role"`)
	require.Contains(t, msg, "api says no")
	require.Equal(t, "api says no", errors.Unwrap(err).Error())
}

func TestCredentialsZero(t *testing.T) {
	creds := Credentials{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	}
	require.True(t, creds.Valid())

	creds.Zero()
	require.False(t, creds.Valid())
	require.Empty(t, creds.AccessKeyID)
	require.Empty(t, creds.SecretAccessKey)
	require.Empty(t, creds.SessionToken)
}
