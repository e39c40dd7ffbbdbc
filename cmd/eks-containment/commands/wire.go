package commands

import (
	"context"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/afero"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/cluster"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/config"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/containment"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/evidence"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/rbac"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/runner"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/token"
)

// loadAWSConfig resolves the region from configuration, then the SDK's
// environment and shared config, then DefaultRegion.
func loadAWSConfig(ctx context.Context, c *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to create AWS config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = config.DefaultRegion
	}
	return awsCfg, nil
}

func newStore(awsCfg aws.Config, c *config.Config) evidence.Store {
	if c.EvidenceDir != "" {
		return evidence.NewFileStore(afero.NewOsFs(), c.EvidenceDir)
	}
	return evidence.NewS3StoreFromConfig(awsCfg, c.EvidenceBucket)
}

func evidenceStore(ctx context.Context, c *config.Config) (evidence.Store, error) {
	awsCfg, err := loadAWSConfig(ctx, c)
	if err != nil {
		return nil, err
	}
	return newStore(awsCfg, c), nil
}

func newSource(awsCfg aws.Config, c *config.Config) cluster.Source {
	if c.ClusterSource == config.ClusterSourceKubeconfig {
		return cluster.NewKubeconfigSource(afero.NewOsFs(), c.Kubeconfig)
	}
	return cluster.NewEKSSourceFromConfig(awsCfg)
}

func newBootstrapper(c *config.Config) *rbac.Bootstrapper {
	return rbac.NewBootstrapper(rbac.Names{
		Namespace:          c.RBACNamespace,
		ServiceAccount:     c.RBACServiceAccount,
		ClusterRole:        c.RBACClusterRole,
		ClusterRoleBinding: c.RBACClusterRoleBinding,
		RoleARN:            c.RoleARN,
	})
}

func newRunner(ctx context.Context, c *config.Config) (*runner.Runner, error) {
	awsCfg, err := loadAWSConfig(ctx, c)
	if err != nil {
		return nil, err
	}

	executor, err := containment.NewExecutor(c.Strategies, c.NetworkPolicyName)
	if err != nil {
		return nil, err
	}

	var bootstrapper *rbac.Bootstrapper
	if c.BootstrapRBAC {
		bootstrapper = newBootstrapper(c)
	}

	return runner.New(runner.Options{
		ClusterName:     c.ClusterName,
		Source:          newSource(awsCfg, c),
		Signer:          token.NewSigner(awsCfg),
		Store:           newStore(awsCfg, c),
		SigningStrategy: c.SigningStrategy,
		Executor:        executor,
		Bootstrapper:    bootstrapper,
		ClientOptions:   []kube.Option{kube.WithQPS(c.APIQPS, int(math.Ceil(c.APIQPS)))},
	}), nil
}
