package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/cluster"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/containment"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/evidence"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/metrics"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/probe"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/rbac"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/token"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// keyAttempts bounds how many later seconds a record may move to when its
// key is already taken
const keyAttempts = 5

// Options wires a Runner's collaborators
type Options struct {
	ClusterName     string
	Source          cluster.Source
	Signer          token.Signer
	Store           evidence.Store
	SigningStrategy models.SigningStrategy
	Executor        *containment.Executor
	// Bootstrapper is nil when access bootstrap is disabled
	Bootstrapper  *rbac.Bootstrapper
	ClientOptions []kube.Option
	Now           func() time.Time
}

// Runner executes one trigger end to end and writes exactly one evidence
// record for it.
type Runner struct {
	opts Options
}

func New(opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts}
}

// Run handles event. Failures to reach the cluster are recorded as evidence
// and reported through the result status; only a failed evidence write is
// returned as an error.
func (r *Runner) Run(ctx context.Context, event Event) (models.RunResult, error) {
	request := event.Request(r.opts.Now())
	logger := logrus.WithFields(logrus.Fields{
		"run_id":    uuid.NewString(),
		"cluster":   r.opts.ClusterName,
		"mode":      request.Mode,
		"namespace": request.Namespace,
	})
	logger.Info("Starting run")

	descriptor, err := r.opts.Source.DescribeCluster(ctx, r.opts.ClusterName)
	if err != nil {
		logger.Errorf("Failed to describe cluster: %v", err)
		return r.writeError(ctx, logger, request, err)
	}

	record := models.EvidenceRecord{
		Cluster: descriptor.Snapshot(),
		Request: request,
	}

	if request.Mode == models.ModeContainment {
		client, _, err := probe.Authenticate(ctx, r.opts.Signer, descriptor, r.opts.SigningStrategy, r.opts.ClientOptions...)
		if err != nil {
			logger.Errorf("Failed to authenticate to cluster: %v", err)
			return r.writeError(ctx, logger, request, err)
		}

		if r.opts.Bootstrapper != nil {
			state := r.opts.Bootstrapper.EnsureAccess(ctx, client)
			record.RBAC = &state
		}

		outcome := r.opts.Executor.Contain(ctx, client, request.Namespace)
		record.Containment = &outcome
		logger.WithField("status", outcome.Status).Info("Containment finished")
	}

	return r.write(ctx, logger, evidence.KindFor(request.Mode), record, StatusOK)
}

// RunRaw decodes a raw trigger and runs it. A trigger that cannot be decoded
// is recorded as an audit-mode error record.
func (r *Runner) RunRaw(ctx context.Context, raw []byte) (models.RunResult, error) {
	event, err := ParseEvent(raw)
	if err == nil {
		return r.Run(ctx, event)
	}

	request := Event{}.Request(r.opts.Now())
	logger := logrus.WithFields(logrus.Fields{
		"run_id":  uuid.NewString(),
		"cluster": r.opts.ClusterName,
	})
	logger.Errorf("Rejected trigger: %v", err)
	return r.writeError(ctx, logger, request, err)
}

func (r *Runner) writeError(ctx context.Context, logger *logrus.Entry, request models.ContainmentRequest, cause error) (models.RunResult, error) {
	record := models.EvidenceRecord{
		Request: request,
		Error:   cause.Error(),
	}
	return r.write(ctx, logger, evidence.KindError, record, StatusError)
}

// write stores record under runs/<ts>/<kind>.json. When another run already
// holds that key the timestamp moves forward one second at a time, so no
// record is overwritten and none is dropped.
func (r *Runner) write(ctx context.Context, logger *logrus.Entry, kind evidence.Kind, record models.EvidenceRecord, status string) (models.RunResult, error) {
	result := models.RunResult{
		Status:   status,
		Location: r.opts.Store.Location(),
		Mode:     record.Request.Mode,
	}

	for attempt := 1; ; attempt++ {
		result.Key = evidence.Key(record.Request.Timestamp, kind)
		data, err := record.Marshal()
		if err != nil {
			return result, fmt.Errorf("failed to encode evidence record: %w", err)
		}

		err = r.opts.Store.Put(ctx, result.Key, data)
		if err == nil {
			break
		}
		if !errors.Is(err, evidence.ErrExists) || attempt == keyAttempts {
			metrics.RecordRun(string(result.Mode), "evidence_failed")
			return result, fmt.Errorf("failed to write evidence record: %w", err)
		}
		logger.WithField("key", result.Key).Warn("Evidence key already taken, moving to the next second")
		record.Request.Timestamp++
	}

	metrics.RecordRun(string(result.Mode), status)
	logger.WithFields(logrus.Fields{"key": result.Key, "status": status}).Info("Run finished")
	return result, nil
}
