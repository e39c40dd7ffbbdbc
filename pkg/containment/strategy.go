package containment

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/metrics"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

const (
	LabelScale    = "label-scale"
	NetworkPolicy = "network-policy"
)

// Strategies lists every strategy name in execution order
var Strategies = []string{LabelScale, NetworkPolicy}

// Strategy is one way of containing a namespace. Apply records what it did on
// outcome and reports whether it changed anything. An error aborts only this
// strategy.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, client *kube.Client, namespace string, outcome *models.ContainmentOutcome) (bool, error)
}

// labelScale labels every pod and scales every deployment to zero
type labelScale struct{}

func (labelScale) Name() string { return LabelScale }

func (labelScale) Apply(ctx context.Context, client *kube.Client, namespace string, outcome *models.ContainmentOutcome) (bool, error) {
	var pods corev1.PodList
	if err := client.Get(ctx, kube.PodsPath(namespace), &pods); err != nil {
		return false, fmt.Errorf("listing pods: %w", err)
	}
	var deployments appsv1.DeploymentList
	if err := client.Get(ctx, kube.DeploymentsPath(namespace), &deployments); err != nil {
		return false, fmt.Errorf("listing deployments: %w", err)
	}

	sort.Slice(pods.Items, func(i, j int) bool { return pods.Items[i].Name < pods.Items[j].Name })
	sort.Slice(deployments.Items, func(i, j int) bool { return deployments.Items[i].Name < deployments.Items[j].Name })

	changed := false
	for _, pod := range pods.Items {
		if pod.Labels[kube.ContainmentLabel] == kube.ContainmentValue {
			continue
		}
		if err := client.MergePatch(ctx, kube.PodPath(namespace, pod.Name), kube.NewLabelPatch(kube.ContainmentLabel, kube.ContainmentValue)); err != nil {
			return changed, fmt.Errorf("labeling pod %s: %w", pod.Name, err)
		}
		logrus.WithFields(logrus.Fields{"namespace": namespace, "pod": pod.Name}).Info("Labeled pod")
		metrics.RecordAction("label_pod")
		outcome.LabeledPods = append(outcome.LabeledPods, pod.Name)
		changed = true
	}

	for _, deployment := range deployments.Items {
		replicas := lo.FromPtr(deployment.Spec.Replicas)
		if replicas == 0 {
			continue
		}
		if err := client.MergePatch(ctx, kube.DeploymentPath(namespace, deployment.Name), kube.NewReplicasPatch(0)); err != nil {
			return changed, fmt.Errorf("scaling deployment %s: %w", deployment.Name, err)
		}
		logrus.WithFields(logrus.Fields{
			"namespace":        namespace,
			"deployment":       deployment.Name,
			"previousReplicas": replicas,
		}).Info("Scaled deployment to zero")
		metrics.RecordAction("scale_deployment")
		outcome.ScaledDeployments[deployment.Name] = replicas
		changed = true
	}
	return changed, nil
}

// denyAll installs a network policy that blocks all traffic in the namespace
type denyAll struct {
	policyName string
}

func (denyAll) Name() string { return NetworkPolicy }

func (d denyAll) Apply(ctx context.Context, client *kube.Client, namespace string, outcome *models.ContainmentOutcome) (bool, error) {
	err := client.Create(ctx, kube.NetworkPoliciesPath(namespace), kube.NewDenyAllNetworkPolicy(namespace, d.policyName))
	switch {
	case err == nil:
		logrus.WithFields(logrus.Fields{"namespace": namespace, "policy": d.policyName}).Info("Applied deny-all network policy")
		metrics.RecordAction("create_networkpolicy")
		outcome.NetworkPolicyApplied = true
		outcome.NetworkPolicy = models.StatusApplied
		return true, nil
	case kube.IsConflict(err):
		logrus.WithFields(logrus.Fields{"namespace": namespace, "policy": d.policyName}).Info("Deny-all network policy already present")
		outcome.NetworkPolicyApplied = true
		outcome.NetworkPolicy = models.StatusAlreadyContained
		return false, nil
	default:
		return false, fmt.Errorf("creating network policy %s: %w", d.policyName, err)
	}
}
