package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	version "github.com/fairwindsops/insights-plugins/plugins/eks-containment"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/dashboard"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/server"
)

var port int

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the latest run summary over HTTP",
	RunE:  runDashboard,
}

func init() {
	RootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := evidenceStore(ctx, cfg)
	if err != nil {
		return err
	}
	s := server.New(port, version.Version, dashboard.New(store), server.StoreChecker{Store: store})
	return s.Run(ctx)
}
