package models

import (
	"encoding/json"
	"time"
)

// Mode selects what a run is allowed to do against the cluster
type Mode string

const (
	ModeAudit       Mode = "audit"
	ModeContainment Mode = "containment"
)

// ParseMode maps an inbound mode string onto a Mode. Anything other than
// "containment" is treated as a read-only audit.
func ParseMode(s string) Mode {
	if Mode(s) == ModeContainment {
		return ModeContainment
	}
	return ModeAudit
}

// SigningStrategy selects the STS host the bearer token is signed against
type SigningStrategy string

const (
	SigningGlobal   SigningStrategy = "global"
	SigningRegional SigningStrategy = "regional"
)

// Alternate returns the other signing strategy.
func (s SigningStrategy) Alternate() SigningStrategy {
	if s == SigningGlobal {
		return SigningRegional
	}
	return SigningGlobal
}

// ClusterDescriptor is the immutable view of the target cluster for one run
type ClusterDescriptor struct {
	Name            string
	Endpoint        string
	CACertificate   []byte
	Status          string
	Version         string
	EndpointPrivate bool
	EndpointPublic  bool
}

// Snapshot returns the subset of the descriptor recorded as evidence
func (c ClusterDescriptor) Snapshot() *ClusterSnapshot {
	return &ClusterSnapshot{
		Name:            c.Name,
		Status:          c.Status,
		Version:         c.Version,
		EndpointPrivate: c.EndpointPrivate,
		EndpointPublic:  c.EndpointPublic,
	}
}

type ClusterSnapshot struct {
	Name            string `json:"name"`
	Status          string `json:"status"`
	Version         string `json:"version"`
	EndpointPrivate bool   `json:"endpointPrivate"`
	EndpointPublic  bool   `json:"endpointPublic"`
}

// BearerCredential is a short-lived Kubernetes API token. It must never be
// persisted or logged.
type BearerCredential struct {
	Token      string
	Strategy   SigningStrategy
	Expiration time.Time
}

// String keeps the token out of log lines and fmt output
func (c BearerCredential) String() string {
	return "BearerCredential{strategy=" + string(c.Strategy) + "}"
}

// GoString keeps the token out of %#v
func (c BearerCredential) GoString() string {
	return c.String()
}

// ContainmentRequest is the parsed inbound trigger
type ContainmentRequest struct {
	Mode      Mode                   `json:"mode"`
	Namespace string                 `json:"namespace"`
	Detail    map[string]interface{} `json:"detail"`
	Timestamp int64                  `json:"ts"`
}

// RbacState records which access objects this run had to create
type RbacState struct {
	ServiceAccountCreated     bool   `json:"serviceAccountCreated"`
	ClusterRoleCreated        bool   `json:"clusterRoleCreated"`
	ClusterRoleBindingCreated bool   `json:"clusterRoleBindingCreated"`
	Error                     string `json:"error,omitempty"`
}

// ContainmentStatus summarises what a containment run did
type ContainmentStatus string

const (
	StatusApplied          ContainmentStatus = "Applied"
	StatusAlreadyContained ContainmentStatus = "AlreadyContained"
	StatusError            ContainmentStatus = "Error"
)

type ContainmentOutcome struct {
	Namespace            string            `json:"namespace"`
	Status               ContainmentStatus `json:"status"`
	Strategies           []string          `json:"strategies"`
	LabeledPods          []string          `json:"labeledPods"`
	ScaledDeployments    map[string]int32  `json:"scaledDeployments"`
	NetworkPolicyApplied bool              `json:"networkPolicyApplied"`
	NetworkPolicy        ContainmentStatus `json:"networkPolicy,omitempty"`
	Error                string            `json:"error,omitempty"`
}

// EvidenceRecord is the single artifact written for every invocation
type EvidenceRecord struct {
	Cluster     *ClusterSnapshot    `json:"cluster,omitempty"`
	Request     ContainmentRequest  `json:"request"`
	RBAC        *RbacState          `json:"rbac,omitempty"`
	Containment *ContainmentOutcome `json:"containment,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Marshal renders the record the way it is stored
func (r EvidenceRecord) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// RunResult is returned to the caller of a run; action-level detail lives in
// the evidence record.
type RunResult struct {
	Status   string `json:"status"`
	Location string `json:"bucket"`
	Key      string `json:"key"`
	Mode     Mode   `json:"mode"`
}
