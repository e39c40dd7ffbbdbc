package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"CLUSTER_NAME", "AWS_REGION", "AWS_DEFAULT_REGION", "CLUSTER_SOURCE", "KUBECONFIG",
		"EVIDENCE_BUCKET", "EVIDENCE_DIR", "BOOTSTRAP_RBAC", "LAMBDA_ROLE_ARN", "RBAC_NAMESPACE",
		"RBAC_SERVICE_ACCOUNT", "RBAC_CLUSTER_ROLE", "RBAC_CLUSTER_ROLE_BINDING",
		"CONTAINMENT_STRATEGIES", "NETWORK_POLICY_NAME", "SIGNING_STRATEGY", "API_QPS", "LOG_LEVEL",
	} {
		t.Setenv(env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLUSTER_NAME", "prod")
	t.Setenv("EVIDENCE_BUCKET", "evidence")

	config, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "prod", config.ClusterName)
	assert.Equal(t, "evidence", config.EvidenceBucket)
	assert.Empty(t, config.Region, "left to the AWS SDK")
	assert.Equal(t, ClusterSourceEKS, config.ClusterSource)
	assert.True(t, config.BootstrapRBAC)
	assert.Equal(t, "kube-system", config.RBACNamespace)
	assert.Equal(t, "containment-lambda", config.RBACServiceAccount)
	assert.Equal(t, "containment-lambda", config.RBACClusterRole)
	assert.Equal(t, "containment-lambda", config.RBACClusterRoleBinding)
	assert.Equal(t, []string{"label-scale", "network-policy"}, config.Strategies)
	assert.Equal(t, "containment-deny-all", config.NetworkPolicyName)
	assert.Equal(t, models.SigningRegional, config.SigningStrategy)
	assert.Equal(t, float64(20), config.APIQPS)
	assert.Equal(t, "info", config.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLUSTER_NAME", "prod")
	t.Setenv("EVIDENCE_DIR", "/tmp/evidence")
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")
	t.Setenv("BOOTSTRAP_RBAC", "false")
	t.Setenv("LAMBDA_ROLE_ARN", "arn:aws:iam::123456789012:role/containment")
	t.Setenv("CONTAINMENT_STRATEGIES", " network-policy , ,network-policy")
	t.Setenv("SIGNING_STRATEGY", "global")
	t.Setenv("API_QPS", "5")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", config.Region)
	assert.Equal(t, "/tmp/evidence", config.EvidenceDir)
	assert.False(t, config.BootstrapRBAC)
	assert.Equal(t, "arn:aws:iam::123456789012:role/containment", config.RoleARN)
	assert.Equal(t, []string{"network-policy"}, config.Strategies)
	assert.Equal(t, models.SigningGlobal, config.SigningStrategy)
	assert.Equal(t, float64(5), config.APIQPS)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ClusterName:     "prod",
			EvidenceBucket:  "evidence",
			ClusterSource:   ClusterSourceEKS,
			SigningStrategy: models.SigningRegional,
			Strategies:      []string{"label-scale"},
			APIQPS:          20,
			LogLevel:        "info",
		}
	}

	c := valid()
	assert.NoError(t, c.Validate())

	cases := map[string]func(*Config){
		"clusterName":     func(c *Config) { c.ClusterName = "" },
		"evidenceBucket":  func(c *Config) { c.EvidenceBucket = "" },
		"clusterSource":   func(c *Config) { c.ClusterSource = "gke" },
		"signingStrategy": func(c *Config) { c.SigningStrategy = "fips" },
		"at least one":    func(c *Config) { c.Strategies = nil },
		"quarantine":      func(c *Config) { c.Strategies = []string{"quarantine"} },
		"apiQPS":          func(c *Config) { c.APIQPS = 0 },
		"logLevel":        func(c *Config) { c.LogLevel = "loud" },
	}
	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			c := valid()
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}
