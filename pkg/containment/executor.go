package containment

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

// Executor applies the configured strategies to a namespace
type Executor struct {
	strategies []Strategy
}

// NewExecutor builds an executor for the named strategies. Names are applied
// in the order of Strategies regardless of the order given.
func NewExecutor(names []string, networkPolicyName string) (*Executor, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no containment strategies configured")
	}
	if unknown := lo.Without(names, Strategies...); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown containment strategies %v", unknown)
	}

	e := &Executor{}
	for _, name := range Strategies {
		if !lo.Contains(names, name) {
			continue
		}
		switch name {
		case LabelScale:
			e.strategies = append(e.strategies, labelScale{})
		case NetworkPolicy:
			if networkPolicyName == "" {
				return nil, fmt.Errorf("%s strategy requires a policy name", NetworkPolicy)
			}
			e.strategies = append(e.strategies, denyAll{policyName: networkPolicyName})
		}
	}
	return e, nil
}

// Names returns the strategies this executor runs
func (e *Executor) Names() []string {
	return lo.Map(e.strategies, func(s Strategy, _ int) string { return s.Name() })
}

// Contain runs every strategy against namespace. A failing strategy does not
// stop the others; its error is folded into the outcome.
func (e *Executor) Contain(ctx context.Context, client *kube.Client, namespace string) models.ContainmentOutcome {
	outcome := models.ContainmentOutcome{
		Namespace:         namespace,
		Strategies:        e.Names(),
		LabeledPods:       []string{},
		ScaledDeployments: map[string]int32{},
	}

	var errs *multierror.Error
	changed := false
	for _, strategy := range e.strategies {
		logger := logrus.WithFields(logrus.Fields{"namespace": namespace, "strategy": strategy.Name()})
		logger.Info("Applying containment strategy")

		applied, err := strategy.Apply(ctx, client, namespace, &outcome)
		changed = changed || applied
		if err != nil {
			logger.Errorf("Containment strategy failed: %v", err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))
		}
	}

	switch {
	case errs.ErrorOrNil() != nil:
		outcome.Status = models.StatusError
		outcome.Error = errs.Error()
	case changed:
		outcome.Status = models.StatusApplied
	default:
		outcome.Status = models.StatusAlreadyContained
	}
	return outcome
}
