package aws

import (
	"context"
	"errors"
	"net/url"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/cloudtolocalllm/oidc-trust/pkg/trust"
)

type fakeIAM struct {
	updateFn func(*iam.UpdateAssumeRolePolicyInput) (*iam.UpdateAssumeRolePolicyOutput, error)
	getFn    func(*iam.GetRoleInput) (*iam.GetRoleOutput, error)
}

func (f *fakeIAM) UpdateAssumeRolePolicy(ctx context.Context, params *iam.UpdateAssumeRolePolicyInput, optFns ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error) {
	return f.updateFn(params)
}

func (f *fakeIAM) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	return f.getFn(params)
}

func builtDocument(t *testing.T) trust.TrustPolicyDocument {
	t.Helper()
	doc, err := trust.BuildTrustPolicy(trust.RoleIdentityParams{
		AccountID: "123456789012",
		RepoSlug:  "acme/widget",
		RoleName:  "ci-role",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return doc
}

func TestApplySendsFullDocument(t *testing.T) {
	doc := builtDocument(t)

	var got *iam.UpdateAssumeRolePolicyInput
	client := NewClient(&fakeIAM{
		updateFn: func(in *iam.UpdateAssumeRolePolicyInput) (*iam.UpdateAssumeRolePolicyOutput, error) {
			got = in
			return &iam.UpdateAssumeRolePolicyOutput{}, nil
		},
	})

	require.NoError(t, client.Apply(context.Background(), "ci-role", doc))
	require.Equal(t, "ci-role", awssdk.ToString(got.RoleName))

	sent, err := trust.ParsePolicyDocument([]byte(awssdk.ToString(got.PolicyDocument)))
	require.NoError(t, err)
	require.True(t, doc.Equal(sent))
}

func TestFetchDecodesURLEncodedDocument(t *testing.T) {
	doc := builtDocument(t)
	encoded := url.QueryEscape(doc.String())

	client := NewClient(&fakeIAM{
		getFn: func(in *iam.GetRoleInput) (*iam.GetRoleOutput, error) {
			require.Equal(t, "ci-role", awssdk.ToString(in.RoleName))
			return &iam.GetRoleOutput{
				Role: &iamtypes.Role{AssumeRolePolicyDocument: awssdk.String(encoded)},
			}, nil
		},
	})

	fetched, err := client.Fetch(context.Background(), "ci-role")
	require.NoError(t, err)
	require.True(t, doc.Equal(fetched))
}

func TestFetchMissingDocument(t *testing.T) {
	client := NewClient(&fakeIAM{
		getFn: func(in *iam.GetRoleInput) (*iam.GetRoleOutput, error) {
			return &iam.GetRoleOutput{Role: &iamtypes.Role{}}, nil
		},
	})

	_, err := client.Fetch(context.Background(), "ci-role")
	require.Error(t, err)
	require.True(t, trust.IsKind(err, trust.KindInternal))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  trust.ErrorKind
		retryable bool
	}{{
		name:     "no such entity",
		err:      &smithy.GenericAPIError{Code: "NoSuchEntity", Message: "role does not exist"},
		wantKind: trust.KindRoleNotFound,
	}, {
		name:     "access denied",
		err:      &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"},
		wantKind: trust.KindAccessDenied,
	}, {
		name:     "bad credentials",
		err:      &smithy.GenericAPIError{Code: "InvalidClientTokenId", Message: "bad key"},
		wantKind: trust.KindAccessDenied,
	}, {
		name:      "throttling",
		err:       &smithy.GenericAPIError{Code: "Throttling", Message: "slow down"},
		wantKind:  trust.KindServiceUnavailable,
		retryable: true,
	}, {
		name:      "service failure",
		err:       &smithy.GenericAPIError{Code: "ServiceFailure", Message: "internal error"},
		wantKind:  trust.KindServiceUnavailable,
		retryable: true,
	}, {
		name:      "unknown server fault",
		err:       &smithy.GenericAPIError{Code: "SomethingNew", Message: "oops", Fault: smithy.FaultServer},
		wantKind:  trust.KindServiceUnavailable,
		retryable: true,
	}, {
		name:     "unknown client fault",
		err:      &smithy.GenericAPIError{Code: "SomethingNew", Message: "oops", Fault: smithy.FaultClient},
		wantKind: trust.KindInternal,
	}, {
		name:     "non-api error",
		err:      errors.New("connection reset"),
		wantKind: trust.KindInternal,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := NewClient(&fakeIAM{
				updateFn: func(*iam.UpdateAssumeRolePolicyInput) (*iam.UpdateAssumeRolePolicyOutput, error) {
					return nil, test.err
				},
			})

			err := client.Apply(context.Background(), "ci-role", builtDocument(t))
			require.Error(t, err)
			require.True(t, trust.IsKind(err, test.wantKind), "got %v", err)
			require.Equal(t, test.retryable, trust.IsRetryable(err))
			require.ErrorIs(t, err, test.err, "underlying error surfaced verbatim")
		})
	}
}
