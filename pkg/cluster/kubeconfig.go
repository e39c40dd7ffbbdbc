package cluster

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

// KubeconfigStatus is reported for clusters read from a kubeconfig, which
// carries no lifecycle information
const KubeconfigStatus = "KUBECONFIG"

// KubeconfigSource resolves clusters from a kubeconfig file. The context
// named after the cluster is used when present, otherwise the current one.
type KubeconfigSource struct {
	fs   afero.Fs
	path string
}

// NewKubeconfigSource reads path, or the default loading rules
// ($KUBECONFIG, ~/.kube/config) when path is empty.
func NewKubeconfigSource(fs afero.Fs, path string) *KubeconfigSource {
	return &KubeconfigSource{fs: fs, path: path}
}

func (s *KubeconfigSource) load() (*clientcmdapi.Config, error) {
	if s.path == "" {
		return clientcmd.NewDefaultClientConfigLoadingRules().Load()
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig %s: %w", s.path, err)
	}
	return clientcmd.Load(data)
}

func (s *KubeconfigSource) DescribeCluster(_ context.Context, name string) (models.ClusterDescriptor, error) {
	config, err := s.load()
	if err != nil {
		return models.ClusterDescriptor{}, err
	}

	contextName := config.CurrentContext
	if _, ok := config.Contexts[name]; ok {
		contextName = name
	}
	kubeContext, ok := config.Contexts[contextName]
	if !ok {
		return models.ClusterDescriptor{}, fmt.Errorf("kubeconfig has no context for cluster %s", name)
	}
	cluster, ok := config.Clusters[kubeContext.Cluster]
	if !ok {
		return models.ClusterDescriptor{}, fmt.Errorf("kubeconfig context %s references unknown cluster %s", contextName, kubeContext.Cluster)
	}

	ca := cluster.CertificateAuthorityData
	if len(ca) == 0 && cluster.CertificateAuthority != "" {
		ca, err = afero.ReadFile(s.fs, cluster.CertificateAuthority)
		if err != nil {
			return models.ClusterDescriptor{}, fmt.Errorf("failed to read certificate authority %s: %w", cluster.CertificateAuthority, err)
		}
	}
	if len(ca) == 0 {
		return models.ClusterDescriptor{}, fmt.Errorf("kubeconfig cluster %s has no certificate authority", kubeContext.Cluster)
	}
	if cluster.Server == "" {
		return models.ClusterDescriptor{}, fmt.Errorf("kubeconfig cluster %s has no server", kubeContext.Cluster)
	}

	return models.ClusterDescriptor{
		Name:           name,
		Endpoint:       cluster.Server,
		CACertificate:  ca,
		Status:         KubeconfigStatus,
		EndpointPublic: true,
	}, nil
}
