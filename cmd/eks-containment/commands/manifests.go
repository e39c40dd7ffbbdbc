package commands

import (
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/config"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/containment"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube"
)

var manifestsNamespace string

var manifestsCmd = &cobra.Command{
	Use:   "manifests",
	Short: "Print the objects a containment run would create",
	Long: `Print the RBAC objects the bootstrapper creates and, with --namespace, the
deny-all network policy as YAML. Nothing is sent to the cluster.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := renderManifests(cfg, manifestsNamespace)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	RootCmd.AddCommand(manifestsCmd)
	manifestsCmd.Flags().StringVar(&manifestsNamespace, "namespace", "", "Also print the network policy for this namespace")
}

func renderManifests(c *config.Config, namespace string) ([]byte, error) {
	objects := newBootstrapper(c).Manifests()
	if namespace != "" && lo.Contains(c.Strategies, containment.NetworkPolicy) {
		objects = append(objects, kube.NewDenyAllNetworkPolicy(namespace, c.NetworkPolicyName))
	}
	return kube.ToYAML(objects...)
}
