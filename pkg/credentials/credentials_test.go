package credentials

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudtolocalllm/oidc-trust/pkg/trust"
)

func TestStatic(t *testing.T) {
	creds, err := Static{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "secret"}.Retrieve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "AKIAEXAMPLE", creds.AccessKeyID)
	require.Equal(t, "secret", creds.SecretAccessKey)

	_, err = Static{}.Retrieve(context.Background())
	require.Error(t, err)
	require.True(t, trust.IsKind(err, trust.KindInvalidInput))
}

func TestFromEnvironment(t *testing.T) {
	t.Setenv(EnvAccessKeyID, "AKIAEXAMPLE")
	t.Setenv(EnvSecretAccessKey, "secret")
	t.Setenv(EnvSessionToken, "token")

	creds, err := FromEnvironment{}.Retrieve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "AKIAEXAMPLE", creds.AccessKeyID)
	require.Equal(t, "secret", creds.SecretAccessKey)
	require.Equal(t, "token", creds.SessionToken)
}

func TestFromEnvironmentMissing(t *testing.T) {
	t.Setenv(EnvAccessKeyID, "")
	t.Setenv(EnvSecretAccessKey, "")

	_, err := FromEnvironment{}.Retrieve(context.Background())
	require.Error(t, err)
	require.True(t, trust.IsKind(err, trust.KindInvalidInput))
}

// promptInput writes lines into a pipe so Prompt reads from a non-terminal
// file and falls back to line input for the secret.
func promptInput(t *testing.T, input string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	_, err = w.WriteString(input)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return r
}

func TestPrompt(t *testing.T) {
	var out bytes.Buffer
	p := Prompt{In: promptInput(t, "AKIAEXAMPLE\nsecret\n"), Out: &out}

	creds, err := p.Retrieve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "AKIAEXAMPLE", creds.AccessKeyID)
	require.Equal(t, "secret", creds.SecretAccessKey)
	require.Contains(t, out.String(), "AWS Access Key ID")
	require.NotContains(t, out.String(), "secret", "prompt output must not echo the secret")
}

func TestPromptEmptyCredentials(t *testing.T) {
	var out bytes.Buffer
	p := Prompt{In: promptInput(t, "\n\n"), Out: &out}

	_, err := p.Retrieve(context.Background())
	require.Error(t, err)
	require.True(t, trust.IsKind(err, trust.KindInvalidInput))
}

func TestPromptCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Prompt{In: promptInput(t, "AKIAEXAMPLE\nsecret\n"), Out: &bytes.Buffer{}}.Retrieve(ctx)
	require.Error(t, err)
	require.True(t, trust.IsKind(err, trust.KindCancelled))
}

func TestByName(t *testing.T) {
	p, err := ByName("prompt")
	require.NoError(t, err)
	require.IsType(t, Prompt{}, p)

	p, err = ByName("env")
	require.NoError(t, err)
	require.IsType(t, FromEnvironment{}, p)

	_, err = ByName("vault")
	require.Error(t, err)
	require.True(t, trust.IsKind(err, trust.KindInvalidInput))
}
