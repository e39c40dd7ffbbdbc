package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/metrics"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/token"
)

// ErrAuthenticationFailed means neither signing strategy produced a
// credential the API server accepted.
var ErrAuthenticationFailed = errors.New("cluster rejected bearer credentials from every signing strategy")

// Probe reports whether the API server accepts the client's credential.
// Any non-2xx answer or transport failure counts as rejection.
func Probe(ctx context.Context, client *kube.Client) bool {
	_, err := client.Do(ctx, http.MethodGet, kube.DiscoveryPath, nil, "")
	if err != nil {
		logrus.WithField("endpoint", client.Endpoint()).Debugf("Credential probe rejected: %v", err)
		return false
	}
	return true
}

// Authenticate signs a credential with primary and probes it. When the
// cluster rejects it, the alternate strategy is tried exactly once. The
// returned client carries the accepted credential.
func Authenticate(ctx context.Context, signer token.Signer, cluster models.ClusterDescriptor, primary models.SigningStrategy, opts ...kube.Option) (*kube.Client, models.BearerCredential, error) {
	for _, strategy := range []models.SigningStrategy{primary, primary.Alternate()} {
		credential, err := signer.Sign(ctx, cluster.Name, strategy)
		if err != nil {
			return nil, models.BearerCredential{}, err
		}

		client, err := kube.NewClient(cluster.Endpoint, cluster.CACertificate, credential, opts...)
		if err != nil {
			return nil, models.BearerCredential{}, fmt.Errorf("failed to build client for %s: %w", cluster.Name, err)
		}

		accepted := Probe(ctx, client)
		metrics.RecordAuthentication(string(strategy), accepted)
		if accepted {
			logrus.WithFields(logrus.Fields{
				"cluster":  cluster.Name,
				"strategy": strategy,
			}).Info("Authenticated to cluster")
			return client, credential, nil
		}
		logrus.WithFields(logrus.Fields{
			"cluster":  cluster.Name,
			"strategy": strategy,
		}).Warn("Cluster rejected credential")
	}
	return nil, models.BearerCredential{}, ErrAuthenticationFailed
}
