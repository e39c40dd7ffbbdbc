package kube

import (
	"fmt"
	"net/url"
)

const (
	rbacAPI       = "/apis/rbac.authorization.k8s.io/v1"
	appsAPI       = "/apis/apps/v1"
	networkingAPI = "/apis/networking.k8s.io/v1"
)

func ServiceAccountsPath(namespace string) string {
	return fmt.Sprintf("/api/v1/namespaces/%s/serviceaccounts", url.PathEscape(namespace))
}

func ServiceAccountPath(namespace, name string) string {
	return ServiceAccountsPath(namespace) + "/" + url.PathEscape(name)
}

func PodsPath(namespace string) string {
	return fmt.Sprintf("/api/v1/namespaces/%s/pods", url.PathEscape(namespace))
}

func PodPath(namespace, name string) string {
	return PodsPath(namespace) + "/" + url.PathEscape(name)
}

func DeploymentsPath(namespace string) string {
	return fmt.Sprintf("%s/namespaces/%s/deployments", appsAPI, url.PathEscape(namespace))
}

func DeploymentPath(namespace, name string) string {
	return DeploymentsPath(namespace) + "/" + url.PathEscape(name)
}

func ClusterRolesPath() string {
	return rbacAPI + "/clusterroles"
}

func ClusterRolePath(name string) string {
	return ClusterRolesPath() + "/" + url.PathEscape(name)
}

func ClusterRoleBindingsPath() string {
	return rbacAPI + "/clusterrolebindings"
}

func ClusterRoleBindingPath(name string) string {
	return ClusterRoleBindingsPath() + "/" + url.PathEscape(name)
}

func NetworkPoliciesPath(namespace string) string {
	return fmt.Sprintf("%s/namespaces/%s/networkpolicies", networkingAPI, url.PathEscape(namespace))
}
