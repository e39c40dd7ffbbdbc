package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	version "github.com/fairwindsops/insights-plugins/plugins/eks-containment"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/config"
)

var cfg *config.Config

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "eks-containment",
	Short:   "Contain compromised workloads on an EKS cluster",
	Version: version.Version,
	Long: `eks-containment authenticates to an EKS control plane with short-lived IAM
credentials and isolates a namespace:

- labels every pod and scales every deployment to zero
- installs a deny-all network policy

Every run writes a single evidence record to S3 or a local directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogging(cfg.LogLevel, jsonLogs || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")
		return nil
	},
}

var jsonLogs bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.String("cluster-name", "", "EKS cluster to act on")
	flags.String("region", "", "AWS region of the cluster")
	flags.String("evidence-bucket", "", "S3 bucket evidence records are written to")
	flags.String("evidence-dir", "", "Local directory evidence records are written to instead of S3")
	flags.String("cluster-source", "", "Where cluster details come from: eks or kubeconfig")
	flags.String("kubeconfig", "", "Kubeconfig file used with --cluster-source=kubeconfig")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&jsonLogs, "json-logs", false, "Log in JSON")

	for key, flag := range map[string]string{
		"clusterName":    "cluster-name",
		"region":         "region",
		"evidenceBucket": "evidence-bucket",
		"evidenceDir":    "evidence-dir",
		"clusterSource":  "cluster-source",
		"kubeconfig":     "kubeconfig",
		"logLevel":       "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func setupLogging(level string, json bool) {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
	logrus.SetOutput(os.Stdout)
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
