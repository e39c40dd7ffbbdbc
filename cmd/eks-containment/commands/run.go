package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/runner"
)

var (
	eventFile string
	mode      string
	namespace string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run once against the cluster and write an evidence record",
	Long: `Run handles a single trigger. The trigger is read from --event (use - for
stdin) or built from --mode and --namespace. The run result is printed as JSON.`,
	RunE: runOnce,
}

func init() {
	RootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&eventFile, "event", "", "Trigger event JSON file, or - for stdin")
	runCmd.Flags().StringVar(&mode, "mode", "", "audit or containment")
	runCmd.Flags().StringVar(&namespace, "namespace", "", "Namespace to contain")
}

func readEvent(cmd *cobra.Command) (runner.Event, error) {
	if eventFile == "" {
		event := runner.Event{Mode: mode, Detail: map[string]interface{}{}}
		if namespace != "" {
			event.Detail["namespace"] = namespace
		}
		return event, nil
	}

	var raw []byte
	var err error
	if eventFile == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(eventFile)
	}
	if err != nil {
		return runner.Event{}, fmt.Errorf("failed to read event: %w", err)
	}
	event, err := runner.ParseEvent(raw)
	if err != nil {
		return runner.Event{}, err
	}
	if mode != "" {
		event.Mode = mode
	}
	return event, nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	event, err := readEvent(cmd)
	if err != nil {
		return err
	}

	r, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}

	result, err := r.Run(ctx, event)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return err
	}
	if result.Status != runner.StatusOK {
		return fmt.Errorf("run failed, see evidence record %s", result.Key)
	}
	return nil
}
