// Package credentials provides caller-credential providers for the
// reconciliation core: static pairs, environment lookup, and an
// interactive operator prompt. Keeping the prompt here keeps terminal
// I/O out of the trust package.
package credentials

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cloudtolocalllm/oidc-trust/pkg/trust"
)

// Static supplies a fixed credential pair.
type Static struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Retrieve implements trust.CredentialProvider.
func (s Static) Retrieve(ctx context.Context) (trust.Credentials, error) {
	creds := trust.Credentials{
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		SessionToken:    s.SessionToken,
	}
	if !creds.Valid() {
		return trust.Credentials{}, trust.ErrInvalidInput("static credentials cannot be empty")
	}
	return creds, nil
}

// Environment variable names read by FromEnvironment.
const (
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    = "AWS_SESSION_TOKEN"
)

// FromEnvironment supplies credentials from the conventional AWS
// environment variables.
type FromEnvironment struct{}

// Retrieve implements trust.CredentialProvider.
func (FromEnvironment) Retrieve(ctx context.Context) (trust.Credentials, error) {
	creds := trust.Credentials{
		AccessKeyID:     os.Getenv(EnvAccessKeyID),
		SecretAccessKey: os.Getenv(EnvSecretAccessKey),
		SessionToken:    os.Getenv(EnvSessionToken),
	}
	if !creds.Valid() {
		return trust.Credentials{}, trust.ErrInvalidInput(
			fmt.Sprintf("%s and %s must be set", EnvAccessKeyID, EnvSecretAccessKey))
	}
	return creds, nil
}

// Prompt interactively asks the operator for a credential pair. The
// secret is read without echo when In is a terminal.
type Prompt struct {
	// In is the input source. Defaults to os.Stdin.
	In *os.File

	// Out receives the prompts. Defaults to os.Stderr so prompts never
	// mix with document output on stdout.
	Out io.Writer
}

// Retrieve implements trust.CredentialProvider.
func (p Prompt) Retrieve(ctx context.Context) (trust.Credentials, error) {
	in := p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	if err := ctx.Err(); err != nil {
		return trust.Credentials{}, trust.ErrCancelled("credential prompt aborted").WithCause(err)
	}

	reader := bufio.NewReader(in)

	fmt.Fprint(out, "AWS Access Key ID: ")
	accessKey, err := readLine(reader)
	if err != nil {
		return trust.Credentials{}, trust.ErrInternal("failed to read access key ID").WithCause(err)
	}

	fmt.Fprint(out, "AWS Secret Access Key: ")
	var secretKey string
	if term.IsTerminal(int(in.Fd())) {
		secret, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return trust.Credentials{}, trust.ErrInternal("failed to read secret access key").WithCause(err)
		}
		secretKey = string(secret)
	} else {
		secretKey, err = readLine(reader)
		if err != nil {
			return trust.Credentials{}, trust.ErrInternal("failed to read secret access key").WithCause(err)
		}
	}

	creds := trust.Credentials{
		AccessKeyID:     strings.TrimSpace(accessKey),
		SecretAccessKey: strings.TrimSpace(secretKey),
	}
	if !creds.Valid() {
		return trust.Credentials{}, trust.ErrInvalidInput("credentials cannot be empty")
	}
	return creds, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ByName resolves a provider by its CLI name.
func ByName(name string) (trust.CredentialProvider, error) {
	switch name {
	case "prompt":
		return Prompt{}, nil
	case "env":
		return FromEnvironment{}, nil
	default:
		return nil, trust.ErrInvalidInput(fmt.Sprintf("unknown credential source %q (want prompt or env)", name))
	}
}
