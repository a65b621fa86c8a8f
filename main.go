// Package main is the entry point for the oidc-trust CLI.
//
// The CLI reconciles the GitHub Actions OIDC trust policy on an AWS IAM
// role: it builds the canonical trust-policy document, applies it, and
// verifies the applied state by reading it back.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloudtolocalllm/oidc-trust/pkg/credentials"
	awsiam "github.com/cloudtolocalllm/oidc-trust/pkg/providers/aws"
	"github.com/cloudtolocalllm/oidc-trust/pkg/trust"
)

const (
	exitError        = 1
	exitInvalidInput = 2
	exitVerifyFailed = 3
	exitCancelled    = 4
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = clog.WithLogger(ctx, clog.New(slog.Default().Handler()))

	if len(args) == 0 {
		printUsage()
		return 0
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "apply":
		return cmdApply(ctx, cmdArgs)
	case "verify":
		return cmdVerify(ctx, cmdArgs)
	case "print":
		return cmdPrint(cmdArgs)
	case "version":
		fmt.Println("oidc-trust " + version)
		return 0
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\nRun 'oidc-trust help' for usage\n", cmd)
		return exitError
	}
}

func printUsage() {
	fmt.Println(`oidc-trust - GitHub Actions OIDC trust-policy reconciliation for AWS IAM roles

Usage:
  oidc-trust <command> [options]

Commands:
  apply       Build the trust policy, apply it to the role, and verify it
  verify      Compare the role's current trust policy against the built document
  print       Build and print the trust policy without contacting AWS
  version     Show version information
  help        Show this help message

Options:
  --role-name <name>    IAM role name (default: github-actions-role)
  --account-id <id>     AWS account ID (12 digits, required)
  --repo <owner/name>   GitHub repository the role should trust (required)
  --region <region>     AWS region (default: us-east-1)
  --credentials <src>   Credential source: prompt or env (default: prompt)
  --timeout <dur>       Per-operation timeout, retries included (default: 30s)

Defaults may also be set via OIDC_TRUST_* environment variables
(OIDC_TRUST_ROLE_NAME, OIDC_TRUST_ACCOUNT_ID, OIDC_TRUST_REPO,
OIDC_TRUST_REGION, OIDC_TRUST_CREDENTIALS, OIDC_TRUST_TIMEOUT).
Flags take precedence.

Exit codes:
  0  trust policy applied and verified
  1  apply failed or internal error
  2  invalid input
  3  applied but verification failed
  4  cancelled`)
}

// cliConfig holds the command configuration. Environment variables give
// the defaults, flags override.
type cliConfig struct {
	RoleName    string        `envconfig:"OIDC_TRUST_ROLE_NAME" default:"github-actions-role"`
	AccountID   string        `envconfig:"OIDC_TRUST_ACCOUNT_ID"`
	Repo        string        `envconfig:"OIDC_TRUST_REPO"`
	Region      string        `envconfig:"OIDC_TRUST_REGION" default:"us-east-1"`
	Credentials string        `envconfig:"OIDC_TRUST_CREDENTIALS" default:"prompt"`
	Timeout     time.Duration `envconfig:"OIDC_TRUST_TIMEOUT" default:"30s"`
}

func parseCommand(name string, args []string) (cliConfig, error) {
	var cfg cliConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to process environment: %w", err)
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.RoleName, "role-name", cfg.RoleName, "IAM role name")
	fs.StringVar(&cfg.AccountID, "account-id", cfg.AccountID, "AWS account ID (12 digits)")
	fs.StringVar(&cfg.Repo, "repo", cfg.Repo, "GitHub repository (owner/name)")
	fs.StringVar(&cfg.Region, "region", cfg.Region, "AWS region")
	fs.StringVar(&cfg.Credentials, "credentials", cfg.Credentials, "credential source: prompt or env")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-operation timeout")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c cliConfig) params() trust.RoleIdentityParams {
	return trust.RoleIdentityParams{
		AccountID: c.AccountID,
		RepoSlug:  c.Repo,
		RoleName:  c.RoleName,
		Region:    c.Region,
	}
}

func cmdApply(ctx context.Context, args []string) int {
	cfg, err := parseCommand("apply", args)
	if err != nil {
		return exitInvalidInput
	}

	params := cfg.params()
	doc, err := trust.BuildTrustPolicy(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitInvalidInput
	}
	fmt.Println("Trust policy:")
	fmt.Println(doc.String())
	fmt.Println()

	client, cleanup, code := newRoleTrustClient(ctx, cfg)
	if client == nil {
		return code
	}
	defer cleanup()

	rec := trust.NewReconciler(client, trust.WithOperationTimeout(cfg.Timeout))
	return report(rec.Reconcile(ctx, params))
}

func cmdVerify(ctx context.Context, args []string) int {
	cfg, err := parseCommand("verify", args)
	if err != nil {
		return exitInvalidInput
	}

	params := cfg.params()
	client, cleanup, code := newRoleTrustClient(ctx, cfg)
	if client == nil {
		return code
	}
	defer cleanup()

	rec := trust.NewReconciler(client, trust.WithOperationTimeout(cfg.Timeout))
	res := rec.Verify(ctx, params)
	if res.Outcome == trust.OutcomeVerified {
		fmt.Println("✓ Trust policy matches the built document")
		return 0
	}
	return report(res)
}

func cmdPrint(args []string) int {
	cfg, err := parseCommand("print", args)
	if err != nil {
		return exitInvalidInput
	}

	doc, err := trust.BuildTrustPolicy(cfg.params())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitInvalidInput
	}
	fmt.Println(doc.String())
	return 0
}

// newRoleTrustClient acquires credentials and constructs the AWS client.
// A nil client means failure; the returned code is the exit status and
// cleanup zeroes the credential copy.
func newRoleTrustClient(ctx context.Context, cfg cliConfig) (trust.RoleTrustClient, func(), int) {
	provider, err := credentials.ByName(cfg.Credentials)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, nil, exitInvalidInput
	}

	creds, err := provider.Retrieve(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if trust.IsKind(err, trust.KindCancelled) {
			return nil, nil, exitCancelled
		}
		return nil, nil, exitInvalidInput
	}
	cleanup := func() { creds.Zero() }

	client, err := awsiam.New(ctx, cfg.Region, credentials.Static{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	})
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, nil, exitError
	}
	return client, cleanup, 0
}

// report prints the reconciliation outcome and maps it to an exit code.
func report(res trust.ReconcileResult) int {
	switch res.Outcome {
	case trust.OutcomeVerified:
		fmt.Println("✓ Trust policy applied and verified")
		return 0
	case trust.OutcomeVerifyFailed:
		fmt.Fprintf(os.Stderr, "⚠ Trust policy applied but not verified: %v\n", res.Err)
		if res.Observed != nil {
			fmt.Fprintln(os.Stderr, "Current trust policy:")
			fmt.Fprintln(os.Stderr, res.Observed.String())
		}
		return exitVerifyFailed
	case trust.OutcomeInputInvalid:
		fmt.Fprintf(os.Stderr, "✗ Invalid input: %v\n", res.Err)
		return exitInvalidInput
	case trust.OutcomeCancelled:
		fmt.Fprintf(os.Stderr, "✗ Cancelled: %v\n", res.Err)
		return exitCancelled
	default:
		fmt.Fprintf(os.Stderr, "✗ Failed to apply trust policy: %v\n", res.Err)
		return exitError
	}
}
