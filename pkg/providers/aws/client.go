// Package aws implements the role-trust client against the AWS IAM API.
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/smithy-go"

	"github.com/cloudtolocalllm/oidc-trust/pkg/trust"
)

// IAMAPI abstracts the IAM operations the client needs, for testing.
type IAMAPI interface {
	UpdateAssumeRolePolicy(ctx context.Context, params *iam.UpdateAssumeRolePolicyInput, optFns ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

// Client implements trust.RoleTrustClient over the IAM API. It performs
// no retries; retry policy belongs to the reconciler.
type Client struct {
	api IAMAPI
}

// NewClient creates a Client over an existing IAM API.
func NewClient(api IAMAPI) *Client {
	return &Client{api: api}
}

// New creates a Client for the region using credentials from provider.
// Credentials are injected explicitly; the client never falls back to
// ambient credential lookup.
func New(ctx context.Context, region string, provider trust.CredentialProvider) (*Client, error) {
	creds, err := provider.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	if !creds.Valid() {
		return nil, trust.ErrInvalidInput("credentials cannot be empty")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		),
	)
	if err != nil {
		return nil, trust.ErrInternal("failed to load AWS configuration").WithCause(err)
	}
	return NewClient(iam.NewFromConfig(cfg)), nil
}

// Apply implements trust.RoleTrustClient. The document replaces the
// role's trust policy wholesale.
func (c *Client) Apply(ctx context.Context, roleName string, doc trust.TrustPolicyDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return trust.ErrInternal("failed to marshal trust policy").WithCause(err)
	}

	_, err = c.api.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
		RoleName:       awssdk.String(roleName),
		PolicyDocument: awssdk.String(string(body)),
	})
	if err != nil {
		return mapAPIError(err, roleName, "apply")
	}
	return nil
}

// Fetch implements trust.RoleTrustClient. The API returns the document
// URL-encoded; it is normalized into the structural model before return.
func (c *Client) Fetch(ctx context.Context, roleName string) (trust.TrustPolicyDocument, error) {
	out, err := c.api.GetRole(ctx, &iam.GetRoleInput{
		RoleName: awssdk.String(roleName),
	})
	if err != nil {
		return trust.TrustPolicyDocument{}, mapAPIError(err, roleName, "fetch")
	}
	if out.Role == nil || out.Role.AssumeRolePolicyDocument == nil {
		return trust.TrustPolicyDocument{}, trust.ErrInternal("role has no trust policy document").WithRole(roleName)
	}

	doc, err := trust.DecodePolicyDocument(awssdk.ToString(out.Role.AssumeRolePolicyDocument))
	if err != nil {
		return trust.TrustPolicyDocument{}, err
	}
	return doc, nil
}

// mapAPIError translates IAM API error codes into the trust taxonomy.
func mapAPIError(err error, roleName, op string) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return trust.ErrInternal(fmt.Sprintf("%s failed", op)).
			WithRole(roleName).WithOperation(op).WithCause(err)
	}

	switch apiErr.ErrorCode() {
	case "NoSuchEntity", "NoSuchEntityException":
		return trust.ErrRoleNotFound(roleName).WithOperation(op).WithCause(err)
	case "AccessDenied", "AccessDeniedException", "UnauthorizedAccess", "InvalidClientTokenId", "SignatureDoesNotMatch":
		return trust.ErrAccessDenied(fmt.Sprintf("caller is not authorized to %s the trust policy", op)).
			WithRole(roleName).WithOperation(op).WithCause(err)
	case "Throttling", "ThrottlingException", "TooManyRequestsException",
		"ServiceUnavailable", "ServiceFailure", "RequestTimeout":
		return trust.ErrServiceUnavailable(fmt.Sprintf("%s failed transiently", op)).
			WithRole(roleName).WithOperation(op).WithCause(err)
	}

	if apiErr.ErrorFault() == smithy.FaultServer {
		return trust.ErrServiceUnavailable(fmt.Sprintf("%s failed transiently", op)).
			WithRole(roleName).WithOperation(op).WithCause(err)
	}
	return trust.ErrInternal(fmt.Sprintf("%s failed", op)).
		WithRole(roleName).WithOperation(op).WithCause(err)
}
