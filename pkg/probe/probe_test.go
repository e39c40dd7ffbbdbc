package probe

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube/kubetest"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/token"
)

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) Sign(ctx context.Context, clusterName string, strategy models.SigningStrategy) (models.BearerCredential, error) {
	args := m.Called(ctx, clusterName, strategy)
	return args.Get(0).(models.BearerCredential), args.Error(1)
}

func credentialFor(strategy models.SigningStrategy) models.BearerCredential {
	return models.BearerCredential{Token: "k8s-aws-v1." + string(strategy), Strategy: strategy}
}

func descriptorFor(server *kubetest.Server) models.ClusterDescriptor {
	return models.ClusterDescriptor{
		Name:          "prod",
		Endpoint:      server.URL,
		CACertificate: server.CACertificate(),
	}
}

func newSigner() *mockSigner {
	signer := &mockSigner{}
	for _, strategy := range []models.SigningStrategy{models.SigningGlobal, models.SigningRegional} {
		signer.On("Sign", mock.Anything, "prod", strategy).Return(credentialFor(strategy), nil)
	}
	return signer
}

func TestProbe(t *testing.T) {
	server := kubetest.NewServer()
	defer server.Close()
	server.Accept("good")

	good, err := kube.NewClient(server.URL, server.CACertificate(), models.BearerCredential{Token: "good"})
	require.NoError(t, err)
	assert.True(t, Probe(context.Background(), good))

	bad, err := kube.NewClient(server.URL, server.CACertificate(), models.BearerCredential{Token: "bad"})
	require.NoError(t, err)
	assert.False(t, Probe(context.Background(), bad))
}

func TestProbeServerErrorIsRejection(t *testing.T) {
	server := kubetest.NewServer()
	defer server.Close()
	server.FailOn(http.MethodGet, kube.DiscoveryPath, http.StatusInternalServerError)

	client, err := kube.NewClient(server.URL, server.CACertificate(), models.BearerCredential{Token: "t"})
	require.NoError(t, err)
	assert.False(t, Probe(context.Background(), client))
}

func TestAuthenticatePrimaryAccepted(t *testing.T) {
	server := kubetest.NewServer()
	defer server.Close()
	server.Accept(credentialFor(models.SigningRegional).Token)

	signer := newSigner()
	client, credential, err := Authenticate(context.Background(), signer, descriptorFor(server), models.SigningRegional)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, models.SigningRegional, credential.Strategy)

	signer.AssertNumberOfCalls(t, "Sign", 1)
	assert.Len(t, server.Calls(), 1)
}

func TestAuthenticateFallsBackOnce(t *testing.T) {
	server := kubetest.NewServer()
	defer server.Close()
	server.Accept(credentialFor(models.SigningGlobal).Token)

	signer := newSigner()
	_, credential, err := Authenticate(context.Background(), signer, descriptorFor(server), models.SigningRegional)
	require.NoError(t, err)
	assert.Equal(t, models.SigningGlobal, credential.Strategy)

	signer.AssertNumberOfCalls(t, "Sign", 2)
	signer.AssertCalled(t, "Sign", mock.Anything, "prod", models.SigningRegional)
	signer.AssertCalled(t, "Sign", mock.Anything, "prod", models.SigningGlobal)
}

func TestAuthenticateBothRejected(t *testing.T) {
	server := kubetest.NewServer()
	defer server.Close()
	server.Accept("nobody")

	signer := newSigner()
	client, _, err := Authenticate(context.Background(), signer, descriptorFor(server), models.SigningGlobal)
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	signer.AssertNumberOfCalls(t, "Sign", 2)
	assert.Len(t, server.Calls(), 2)
}

func TestAuthenticateSigningErrorIsFatal(t *testing.T) {
	server := kubetest.NewServer()
	defer server.Close()

	signer := &mockSigner{}
	signErr := &token.SigningError{Strategy: models.SigningRegional, Err: errors.New("no credentials")}
	signer.On("Sign", mock.Anything, "prod", models.SigningRegional).Return(models.BearerCredential{}, signErr)

	_, _, err := Authenticate(context.Background(), signer, descriptorFor(server), models.SigningRegional)
	var target *token.SigningError
	assert.True(t, errors.As(err, &target))

	signer.AssertNumberOfCalls(t, "Sign", 1)
	assert.Empty(t, server.Calls())
}
