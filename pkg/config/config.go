package config

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/containment"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

// DefaultRegion is used when neither configuration nor the AWS SDK's own
// resolution names a region
const DefaultRegion = "us-east-1"

const (
	ClusterSourceEKS        = "eks"
	ClusterSourceKubeconfig = "kubeconfig"
)

// Config represents the configuration for a containment run
type Config struct {
	ClusterName   string `mapstructure:"clusterName"`
	Region        string `mapstructure:"region"`
	ClusterSource string `mapstructure:"clusterSource"`
	Kubeconfig    string `mapstructure:"kubeconfig"`

	// Evidence destination: a directory when set, otherwise the bucket
	EvidenceBucket string `mapstructure:"evidenceBucket"`
	EvidenceDir    string `mapstructure:"evidenceDir"`

	// Access bootstrap
	BootstrapRBAC          bool   `mapstructure:"bootstrapRBAC"`
	RoleARN                string `mapstructure:"roleArn"`
	RBACNamespace          string `mapstructure:"rbacNamespace"`
	RBACServiceAccount     string `mapstructure:"rbacServiceAccount"`
	RBACClusterRole        string `mapstructure:"rbacClusterRole"`
	RBACClusterRoleBinding string `mapstructure:"rbacClusterRoleBinding"`

	// Containment
	Strategies        []string `mapstructure:"strategies"`
	NetworkPolicyName string   `mapstructure:"networkPolicyName"`

	SigningStrategy models.SigningStrategy `mapstructure:"signingStrategy"`
	APIQPS          float64                `mapstructure:"apiQPS"`

	LogLevel string `mapstructure:"logLevel"`
}

// LoadConfig loads configuration from the global viper instance, so command
// line flags bound to it take precedence.
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads configuration from config files, environment variables and the
// defaults into v.
func Load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/eks-containment")

	v.SetDefault("clusterSource", ClusterSourceEKS)
	v.SetDefault("bootstrapRBAC", true)
	v.SetDefault("rbacNamespace", "kube-system")
	v.SetDefault("rbacServiceAccount", "containment-lambda")
	v.SetDefault("rbacClusterRole", "containment-lambda")
	v.SetDefault("rbacClusterRoleBinding", "containment-lambda")
	v.SetDefault("strategies", strings.Join(containment.Strategies, ","))
	v.SetDefault("networkPolicyName", "containment-deny-all")
	v.SetDefault("signingStrategy", string(models.SigningRegional))
	v.SetDefault("apiQPS", 20)
	v.SetDefault("logLevel", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindings := map[string][]string{
		"clusterName":            {"CLUSTER_NAME"},
		"region":                 {"AWS_REGION", "AWS_DEFAULT_REGION"},
		"clusterSource":          {"CLUSTER_SOURCE"},
		"kubeconfig":             {"KUBECONFIG"},
		"evidenceBucket":         {"EVIDENCE_BUCKET"},
		"evidenceDir":            {"EVIDENCE_DIR"},
		"bootstrapRBAC":          {"BOOTSTRAP_RBAC"},
		"roleArn":                {"LAMBDA_ROLE_ARN"},
		"rbacNamespace":          {"RBAC_NAMESPACE"},
		"rbacServiceAccount":     {"RBAC_SERVICE_ACCOUNT"},
		"rbacClusterRole":        {"RBAC_CLUSTER_ROLE"},
		"rbacClusterRoleBinding": {"RBAC_CLUSTER_ROLE_BINDING"},
		"strategies":             {"CONTAINMENT_STRATEGIES"},
		"networkPolicyName":      {"NETWORK_POLICY_NAME"},
		"signingStrategy":        {"SIGNING_STRATEGY"},
		"apiQPS":                 {"API_QPS"},
		"logLevel":               {"LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Strategies = normalizeList(config.Strategies)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// normalizeList splits comma separated entries and drops blanks and repeats
func normalizeList(values []string) []string {
	var out []string
	for _, value := range values {
		out = append(out, strings.Split(value, ",")...)
	}
	out = lo.Map(out, func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Compact(out))
}

// Validate checks required fields and enumerations
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("clusterName is required")
	}
	if c.EvidenceBucket == "" && c.EvidenceDir == "" {
		return fmt.Errorf("evidenceBucket or evidenceDir is required")
	}
	if !lo.Contains([]string{ClusterSourceEKS, ClusterSourceKubeconfig}, c.ClusterSource) {
		return fmt.Errorf("unknown clusterSource %q", c.ClusterSource)
	}
	if c.SigningStrategy != models.SigningGlobal && c.SigningStrategy != models.SigningRegional {
		return fmt.Errorf("unknown signingStrategy %q", c.SigningStrategy)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one containment strategy is required")
	}
	if unknown := lo.Without(c.Strategies, containment.Strategies...); len(unknown) > 0 {
		return fmt.Errorf("unknown containment strategies %v", unknown)
	}
	if c.APIQPS <= 0 {
		return fmt.Errorf("apiQPS must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid logLevel: %w", err)
	}
	return nil
}
