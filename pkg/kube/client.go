package kube

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/types"

	version "github.com/fairwindsops/insights-plugins/plugins/eks-containment"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/metrics"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

const (
	ConnectTimeout = 3 * time.Second
	RequestTimeout = 10 * time.Second

	// DiscoveryPath is readable by any authenticated principal
	DiscoveryPath = "/api/v1"

	JSONContentType       = "application/json"
	MergePatchContentType = string(types.MergePatchType)

	defaultQPS   = 20
	defaultBurst = 10
)

type options struct {
	qps            float64
	burst          int
	connectTimeout time.Duration
	requestTimeout time.Duration
}

// Option customises a Client
type Option func(*options)

// WithQPS throttles requests issued through one client. A burst below 1 is
// raised to the smallest value that lets a request through.
func WithQPS(qps float64, burst int) Option {
	return func(o *options) {
		o.qps = qps
		o.burst = burst
	}
}

// WithTimeouts overrides the connect and total request timeouts
func WithTimeouts(connect, request time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = connect
		o.requestTimeout = request
	}
}

// Client talks to one cluster's API server with one bearer credential. It is
// built per run and never shared between runs.
type Client struct {
	endpoint string
	http     *req.Client
	limiter  *rate.Limiter
}

// NewClient creates a client that trusts only caCertificate (PEM) when
// connecting to endpoint.
func NewClient(endpoint string, caCertificate []byte, credential models.BearerCredential, opts ...Option) (*Client, error) {
	o := options{
		qps:            defaultQPS,
		burst:          defaultBurst,
		connectTimeout: ConnectTimeout,
		requestTimeout: RequestTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.burst < 1 {
		o.burst = max(1, int(math.Ceil(o.qps)))
	}

	if endpoint == "" {
		return nil, errors.New("cluster endpoint is empty")
	}
	if credential.Token == "" {
		return nil, errors.New("bearer credential is empty")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCertificate) {
		return nil, errors.New("cluster certificate authority contains no PEM certificates")
	}

	dialer := &net.Dialer{Timeout: o.connectTimeout}
	httpClient := req.C().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(o.requestTimeout).
		SetDial(dialer.DialContext).
		SetTLSClientConfig(&tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		}).
		SetCommonBearerAuthToken(credential.Token).
		SetCommonHeader("Accept", JSONContentType).
		SetUserAgent("eks-containment/" + version.Version)

	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(o.qps), o.burst),
	}, nil
}

// Endpoint returns the API server URL this client targets
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Do issues a request and classifies the response. body, when not nil, is
// serialized as JSON and sent with contentType.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, contentType string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransientError{Method: method, Path: path, Err: err}
	}

	r := c.http.R().SetContext(ctx)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s %s body: %w", method, path, err)
		}
		if contentType == "" {
			contentType = JSONContentType
		}
		r.SetBodyBytes(data).SetContentType(contentType)
	}

	logrus.WithFields(logrus.Fields{"method": method, "path": path}).Debug("Calling Kubernetes API")
	resp, err := r.Send(method, path)
	if err != nil {
		metrics.RecordAPIRequest(method, 0)
		return nil, &TransientError{Method: method, Path: path, Err: err}
	}

	status := resp.GetStatusCode()
	metrics.RecordAPIRequest(method, status)

	switch {
	case status == http.StatusNotFound:
		logrus.WithFields(logrus.Fields{"method": method, "path": path}).Debug("Kubernetes resource not found")
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case status < 200 || status >= 300:
		return nil, &APIError{Method: method, Path: path, StatusCode: status, Body: resp.String()}
	}

	data := resp.Bytes()
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("kubernetes API %s %s returned a non-JSON body", method, path)
	}
	return data, nil
}

// Get decodes the object at path into out
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	data, err := c.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if len(data) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// Create POSTs obj to a collection path
func (c *Client) Create(ctx context.Context, collectionPath string, obj interface{}) error {
	_, err := c.Do(ctx, http.MethodPost, collectionPath, obj, JSONContentType)
	return err
}

// MergePatch applies patch to the object at path with merge-patch semantics,
// leaving unspecified fields untouched.
func (c *Client) MergePatch(ctx context.Context, path string, patch interface{}) error {
	_, err := c.Do(ctx, http.MethodPatch, path, patch, MergePatchContentType)
	return err
}

// LookupState is the outcome of an existence check
type LookupState int

const (
	Found LookupState = iota
	NotFound
	Failed
)

func (s LookupState) String() string {
	switch s {
	case Found:
		return "Found"
	case NotFound:
		return "NotFound"
	default:
		return "Failed"
	}
}

// Lookup is Found with the object body, NotFound, or Failed with the cause
type Lookup struct {
	State LookupState
	Body  []byte
	Err   error
}

// Lookup checks whether the object at path exists
func (c *Client) Lookup(ctx context.Context, path string) Lookup {
	data, err := c.Do(ctx, http.MethodGet, path, nil, "")
	switch {
	case err == nil:
		return Lookup{State: Found, Body: data}
	case IsNotFound(err):
		return Lookup{State: NotFound}
	default:
		return Lookup{State: Failed, Err: err}
	}
}
