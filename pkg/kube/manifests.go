package kube

import (
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// ManagedByLabel marks every object this tool creates
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "eks-containment"

	// ContainmentLabel is applied to every pod in a contained namespace
	ContainmentLabel = "containment"
	ContainmentValue = "true"

	// RoleARNAnnotation links a service account to an IAM role (IRSA)
	RoleARNAnnotation = "eks.amazonaws.com/role-arn"
)

func managedLabels() map[string]string {
	return map[string]string{ManagedByLabel: ManagedByValue}
}

// NewServiceAccount builds the automation service account
func NewServiceAccount(namespace, name, roleARN string) *corev1.ServiceAccount {
	sa := &corev1.ServiceAccount{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ServiceAccount"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    managedLabels(),
		},
	}
	if roleARN != "" {
		sa.Annotations = map[string]string{RoleARNAnnotation: roleARN}
	}
	return sa
}

// NewClusterRole builds the role that can read and mutate pods and deployments
func NewClusterRole(name string) *rbacv1.ClusterRole {
	verbs := []string{"get", "list", "patch", "update"}
	return &rbacv1.ClusterRole{
		TypeMeta: metav1.TypeMeta{APIVersion: rbacv1.SchemeGroupVersion.String(), Kind: "ClusterRole"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: managedLabels(),
		},
		Rules: []rbacv1.PolicyRule{
			{APIGroups: []string{""}, Resources: []string{"pods"}, Verbs: verbs},
			{APIGroups: []string{"apps"}, Resources: []string{"deployments"}, Verbs: verbs},
		},
	}
}

// NewClusterRoleBinding binds roleName to the service account
func NewClusterRoleBinding(name, roleName, saNamespace, saName string) *rbacv1.ClusterRoleBinding {
	return &rbacv1.ClusterRoleBinding{
		TypeMeta: metav1.TypeMeta{APIVersion: rbacv1.SchemeGroupVersion.String(), Kind: "ClusterRoleBinding"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: managedLabels(),
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     roleName,
		},
		Subjects: []rbacv1.Subject{
			{Kind: rbacv1.ServiceAccountKind, Name: saName, Namespace: saNamespace},
		},
	}
}

// NewDenyAllNetworkPolicy selects every pod in namespace and allows no traffic
// in either direction.
func NewDenyAllNetworkPolicy(namespace, name string) *networkingv1.NetworkPolicy {
	return &networkingv1.NetworkPolicy{
		TypeMeta: metav1.TypeMeta{APIVersion: networkingv1.SchemeGroupVersion.String(), Kind: "NetworkPolicy"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    managedLabels(),
		},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{},
			PolicyTypes: []networkingv1.PolicyType{
				networkingv1.PolicyTypeIngress,
				networkingv1.PolicyTypeEgress,
			},
		},
	}
}

type patchMetadata struct {
	Labels map[string]string `json:"labels"`
}

// LabelPatch is a merge patch that sets labels
type LabelPatch struct {
	Metadata patchMetadata `json:"metadata"`
}

func NewLabelPatch(key, value string) LabelPatch {
	return LabelPatch{Metadata: patchMetadata{Labels: map[string]string{key: value}}}
}

type replicasSpec struct {
	Replicas int32 `json:"replicas"`
}

// ReplicasPatch is a merge patch that sets spec.replicas
type ReplicasPatch struct {
	Spec replicasSpec `json:"spec"`
}

func NewReplicasPatch(replicas int32) ReplicasPatch {
	return ReplicasPatch{Spec: replicasSpec{Replicas: replicas}}
}
