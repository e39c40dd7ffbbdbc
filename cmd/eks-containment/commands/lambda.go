package commands

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/dashboard"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/runner"
)

var serveDashboard bool

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Start the AWS Lambda runtime loop",
	Long: `Start the AWS Lambda runtime loop. By default each invocation is a trigger
event handled like the run command. With --dashboard the function answers
Lambda function URL requests with the dashboard page.`,
	RunE: runLambda,
}

func init() {
	RootCmd.AddCommand(lambdaCmd)
	lambdaCmd.Flags().BoolVar(&serveDashboard, "dashboard", false, "Serve the dashboard behind a function URL")
}

func runLambda(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	setupLogging(cfg.LogLevel, true)

	if serveDashboard {
		store, err := evidenceStore(ctx, cfg)
		if err != nil {
			return err
		}
		lambda.Start(dashboardHandler(dashboard.New(store)))
		return nil
	}

	r, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	lambda.Start(eventHandler(r))
	return nil
}

func eventHandler(r *runner.Runner) func(context.Context, json.RawMessage) (models.RunResult, error) {
	return func(ctx context.Context, raw json.RawMessage) (models.RunResult, error) {
		return r.RunRaw(ctx, raw)
	}
}

func dashboardHandler(d *dashboard.Dashboard) func(context.Context, events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	return func(ctx context.Context, _ events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		page, err := d.Render(ctx)
		if err != nil {
			logrus.WithError(err).Error("Failed to render dashboard")
			return events.LambdaFunctionURLResponse{
				StatusCode: http.StatusInternalServerError,
				Headers:    map[string]string{"Content-Type": "text/plain"},
				Body:       "failed to render dashboard",
			}, nil
		}
		return events.LambdaFunctionURLResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{"Content-Type": dashboard.ContentType},
			Body:       string(page),
		}, nil
	}
}
