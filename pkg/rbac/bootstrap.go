package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/kube"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/metrics"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

// Names identifies the access objects the automation principal relies on
type Names struct {
	Namespace          string
	ServiceAccount     string
	ClusterRole        string
	ClusterRoleBinding string
	// RoleARN, when set, is annotated onto the service account
	RoleARN string
}

// Bootstrapper creates missing access objects. Existing objects are left as
// they are.
type Bootstrapper struct {
	names Names
}

func NewBootstrapper(names Names) *Bootstrapper {
	return &Bootstrapper{names: names}
}

type accessObject struct {
	kind           string
	itemPath       string
	collectionPath string
	manifest       interface{}
	created        *bool
}

func (b *Bootstrapper) objects(state *models.RbacState) []accessObject {
	n := b.names
	return []accessObject{
		{
			kind:           "ServiceAccount",
			itemPath:       kube.ServiceAccountPath(n.Namespace, n.ServiceAccount),
			collectionPath: kube.ServiceAccountsPath(n.Namespace),
			manifest:       kube.NewServiceAccount(n.Namespace, n.ServiceAccount, n.RoleARN),
			created:        &state.ServiceAccountCreated,
		},
		{
			kind:           "ClusterRole",
			itemPath:       kube.ClusterRolePath(n.ClusterRole),
			collectionPath: kube.ClusterRolesPath(),
			manifest:       kube.NewClusterRole(n.ClusterRole),
			created:        &state.ClusterRoleCreated,
		},
		{
			kind:           "ClusterRoleBinding",
			itemPath:       kube.ClusterRoleBindingPath(n.ClusterRoleBinding),
			collectionPath: kube.ClusterRoleBindingsPath(),
			manifest:       kube.NewClusterRoleBinding(n.ClusterRoleBinding, n.ClusterRole, n.Namespace, n.ServiceAccount),
			created:        &state.ClusterRoleBindingCreated,
		},
	}
}

// Manifests returns the objects EnsureAccess would create, in creation order
func (b *Bootstrapper) Manifests() []interface{} {
	return lo.Map(b.objects(&models.RbacState{}), func(o accessObject, _ int) interface{} { return o.manifest })
}

// EnsureAccess looks up the service account, cluster role and binding and
// creates whichever are missing, in that order. Failures are captured in the
// returned state rather than returned.
func (b *Bootstrapper) EnsureAccess(ctx context.Context, client *kube.Client) models.RbacState {
	state := models.RbacState{}
	objects := b.objects(&state)

	lookups := make([]kube.Lookup, len(objects))
	for i, obj := range objects {
		lookups[i] = client.Lookup(ctx, obj.itemPath)
	}

	var errs *multierror.Error
	for i, obj := range objects {
		logger := logrus.WithFields(logrus.Fields{"kind": obj.kind, "path": obj.itemPath})
		switch lookups[i].State {
		case kube.Found:
			logger.Debug("Access object already present")
		case kube.Failed:
			errs = multierror.Append(errs, fmt.Errorf("checking %s: %w", obj.kind, lookups[i].Err))
		case kube.NotFound:
			if err := client.Create(ctx, obj.collectionPath, obj.manifest); err != nil {
				if kube.IsConflict(err) {
					logger.Debug("Access object created concurrently")
					continue
				}
				errs = multierror.Append(errs, fmt.Errorf("creating %s: %w", obj.kind, err))
				continue
			}
			*obj.created = true
			metrics.RecordAction("create_" + strings.ToLower(obj.kind))
			logger.Info("Created access object")
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		logrus.Errorf("RBAC bootstrap incomplete: %v", err)
		state.Error = err.Error()
	}
	return state
}
