package cluster

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/sirupsen/logrus"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

// Source describes the cluster a run targets
type Source interface {
	DescribeCluster(ctx context.Context, name string) (models.ClusterDescriptor, error)
}

// DescribeClusterAPI is the subset of the EKS client used here
type DescribeClusterAPI interface {
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
}

// EKSSource reads cluster details from the EKS control plane API
type EKSSource struct {
	api DescribeClusterAPI
}

func NewEKSSource(api DescribeClusterAPI) *EKSSource {
	return &EKSSource{api: api}
}

// NewEKSSourceFromConfig builds an EKSSource on an EKS client for cfg
func NewEKSSourceFromConfig(cfg aws.Config) *EKSSource {
	return NewEKSSource(eks.NewFromConfig(cfg))
}

func (s *EKSSource) DescribeCluster(ctx context.Context, name string) (models.ClusterDescriptor, error) {
	if name == "" {
		return models.ClusterDescriptor{}, errors.New("cluster name is empty")
	}
	out, err := s.api.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
	if err != nil {
		return models.ClusterDescriptor{}, fmt.Errorf("failed to describe cluster %s: %w", name, err)
	}
	if out == nil || out.Cluster == nil {
		return models.ClusterDescriptor{}, fmt.Errorf("cluster %s was not returned by EKS", name)
	}
	c := out.Cluster

	endpoint := aws.ToString(c.Endpoint)
	if endpoint == "" {
		return models.ClusterDescriptor{}, fmt.Errorf("cluster %s has no API endpoint", name)
	}
	if c.CertificateAuthority == nil || aws.ToString(c.CertificateAuthority.Data) == "" {
		return models.ClusterDescriptor{}, fmt.Errorf("cluster %s has no certificate authority", name)
	}
	ca, err := base64.StdEncoding.DecodeString(aws.ToString(c.CertificateAuthority.Data))
	if err != nil {
		return models.ClusterDescriptor{}, fmt.Errorf("failed to decode certificate authority of %s: %w", name, err)
	}

	descriptor := models.ClusterDescriptor{
		Name:          name,
		Endpoint:      endpoint,
		CACertificate: ca,
		Status:        string(c.Status),
		Version:       aws.ToString(c.Version),
	}
	if c.ResourcesVpcConfig != nil {
		descriptor.EndpointPrivate = c.ResourcesVpcConfig.EndpointPrivateAccess
		descriptor.EndpointPublic = c.ResourcesVpcConfig.EndpointPublicAccess
	}

	logrus.WithFields(logrus.Fields{
		"cluster": name,
		"status":  descriptor.Status,
		"version": descriptor.Version,
	}).Debug("Described EKS cluster")
	return descriptor, nil
}
