package token

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/sirupsen/logrus"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

const (
	// Prefix is the scheme tag the EKS authenticator expects on presigned tokens
	Prefix = "k8s-aws-v1."

	// ClusterIDHeader binds the presigned request to a single cluster
	ClusterIDHeader = "x-k8s-aws-id"

	// Lifetime is the presigned URL expiry. EKS rejects anything else.
	Lifetime = 60 * time.Second

	globalSTSEndpoint = "https://sts.amazonaws.com"
	globalSTSRegion   = "us-east-1"
)

// SigningError means no token could be derived from the ambient identity
type SigningError struct {
	Strategy models.SigningStrategy
	Err      error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign %s token: %v", e.Strategy, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Signer derives Kubernetes bearer tokens from an AWS identity
type Signer interface {
	Sign(ctx context.Context, clusterName string, strategy models.SigningStrategy) (models.BearerCredential, error)
}

// STSSigner presigns sts:GetCallerIdentity requests
type STSSigner struct {
	awsConfig aws.Config
	now       func() time.Time
}

// NewSigner creates a signer using the given AWS configuration's credentials
func NewSigner(awsConfig aws.Config) *STSSigner {
	return &STSSigner{awsConfig: awsConfig, now: time.Now}
}

// Sign returns a bearer token for clusterName signed against the STS host
// selected by strategy.
func (s *STSSigner) Sign(ctx context.Context, clusterName string, strategy models.SigningStrategy) (models.BearerCredential, error) {
	presigned, err := s.presign(ctx, clusterName, strategy)
	if err != nil {
		return models.BearerCredential{}, err
	}

	logrus.WithFields(logrus.Fields{
		"cluster":  clusterName,
		"strategy": strategy,
	}).Debug("Derived bearer token")

	return models.BearerCredential{
		Token:      Encode(presigned.URL),
		Strategy:   strategy,
		Expiration: s.now().Add(Lifetime),
	}, nil
}

func (s *STSSigner) presign(ctx context.Context, clusterName string, strategy models.SigningStrategy) (*v4.PresignedHTTPRequest, error) {
	if clusterName == "" {
		return nil, &SigningError{Strategy: strategy, Err: errors.New("cluster name is empty")}
	}
	if s.awsConfig.Credentials == nil {
		return nil, &SigningError{Strategy: strategy, Err: errors.New("no AWS credentials available")}
	}
	if _, err := s.awsConfig.Credentials.Retrieve(ctx); err != nil {
		return nil, &SigningError{Strategy: strategy, Err: fmt.Errorf("failed to retrieve AWS credentials: %w", err)}
	}

	region, endpoint, err := s.stsEndpoint(strategy)
	if err != nil {
		return nil, &SigningError{Strategy: strategy, Err: err}
	}

	stsClient := sts.NewFromConfig(s.awsConfig, func(o *sts.Options) {
		o.Region = region
		o.BaseEndpoint = aws.String(endpoint)
	})
	presignClient := sts.NewPresignClient(stsClient)

	presigned, err := presignClient.PresignGetCallerIdentity(ctx, &sts.GetCallerIdentityInput{},
		func(po *sts.PresignOptions) {
			po.Presigner = newClusterPresigner(po.Presigner, clusterName)
		})
	if err != nil {
		return nil, &SigningError{Strategy: strategy, Err: fmt.Errorf("failed to presign GetCallerIdentity: %w", err)}
	}
	return presigned, nil
}

func (s *STSSigner) stsEndpoint(strategy models.SigningStrategy) (string, string, error) {
	switch strategy {
	case models.SigningGlobal:
		return globalSTSRegion, globalSTSEndpoint, nil
	case models.SigningRegional:
		if s.awsConfig.Region == "" {
			return "", "", errors.New("regional signing requires an AWS region")
		}
		return s.awsConfig.Region, fmt.Sprintf("https://sts.%s.amazonaws.com", s.awsConfig.Region), nil
	default:
		return "", "", fmt.Errorf("unknown signing strategy %q", strategy)
	}
}

// Encode turns a presigned URL into a bearer token
func Encode(presignedURL string) string {
	return Prefix + base64.RawURLEncoding.EncodeToString([]byte(presignedURL))
}

// Decode reverses Encode
func Decode(token string) (string, error) {
	if len(token) <= len(Prefix) || token[:len(Prefix)] != Prefix {
		return "", fmt.Errorf("token does not start with %q", Prefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token[len(Prefix):])
	if err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}
	return string(raw), nil
}

// clusterPresigner adds the cluster binding and the expiry before the inner
// presigner signs. X-Amz-* headers are hoisted into the query string.
type clusterPresigner struct {
	inner       sts.HTTPPresignerV4
	clusterName string
}

func newClusterPresigner(inner sts.HTTPPresignerV4, clusterName string) *clusterPresigner {
	return &clusterPresigner{inner: inner, clusterName: clusterName}
}

func (p *clusterPresigner) PresignHTTP(
	ctx context.Context, credentials aws.Credentials, r *http.Request,
	payloadHash string, service string, region string, signingTime time.Time,
	optFns ...func(*v4.SignerOptions),
) (signedURL string, signedHeader http.Header, err error) {
	r.Header.Set(ClusterIDHeader, p.clusterName)
	r.Header.Set("X-Amz-Expires", strconv.Itoa(int(Lifetime.Seconds())))
	return p.inner.PresignHTTP(ctx, credentials, r, payloadHash, service, region, signingTime, optFns...)
}
