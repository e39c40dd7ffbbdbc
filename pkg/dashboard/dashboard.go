// Package dashboard renders a read-only HTML summary of the most recent
// evidence record.
package dashboard

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/evidence"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

const (
	ContentType = "text/html; charset=utf-8"
	unknown     = "unknown"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// View is the data rendered for the latest run
type View struct {
	RunTime           string
	Mode              models.Mode
	ClusterStatus     string
	ClusterVersion    string
	EndpointPrivate   string
	EndpointPublic    string
	Namespace         string
	ContainmentStatus models.ContainmentStatus
	NetworkPolicy     models.ContainmentStatus
	Error             string
	Key               string
}

type Dashboard struct {
	store evidence.Store
}

func New(store evidence.Store) *Dashboard {
	return &Dashboard{store: store}
}

// Render returns the dashboard page. An empty store renders a placeholder
// without reading any record.
func (d *Dashboard) Render(ctx context.Context) ([]byte, error) {
	objects, err := d.store.List(ctx, evidence.RunsPrefix)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	latest, ok := evidence.Latest(objects)
	if !ok {
		if err := templates.ExecuteTemplate(&buf, "empty.html.tmpl", nil); err != nil {
			return nil, fmt.Errorf("failed to render dashboard: %w", err)
		}
		return buf.Bytes(), nil
	}

	data, err := d.store.Get(ctx, latest.Key)
	if err != nil {
		return nil, err
	}
	var record models.EvidenceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode evidence record %s: %w", latest.Key, err)
	}
	logrus.WithField("key", latest.Key).Debug("Rendering dashboard")

	if err := templates.ExecuteTemplate(&buf, "latest.html.tmpl", NewView(latest.Key, record)); err != nil {
		return nil, fmt.Errorf("failed to render dashboard: %w", err)
	}
	return buf.Bytes(), nil
}

// NewView flattens a record for display
func NewView(key string, record models.EvidenceRecord) View {
	view := View{
		RunTime:         unknown,
		Mode:            record.Request.Mode,
		ClusterStatus:   unknown,
		ClusterVersion:  unknown,
		EndpointPrivate: unknown,
		EndpointPublic:  unknown,
		Namespace:       record.Request.Namespace,
		Error:           record.Error,
		Key:             key,
	}
	if view.Mode == "" {
		view.Mode = models.ModeAudit
	}
	if record.Request.Timestamp > 0 {
		view.RunTime = time.Unix(record.Request.Timestamp, 0).UTC().Format("2006-01-02 15:04:05Z")
	}
	if c := record.Cluster; c != nil {
		view.ClusterStatus = c.Status
		view.ClusterVersion = c.Version
		view.EndpointPrivate = enabled(c.EndpointPrivate)
		view.EndpointPublic = enabled(c.EndpointPublic)
	}
	if c := record.Containment; c != nil {
		view.ContainmentStatus = c.Status
		view.NetworkPolicy = c.NetworkPolicy
		if view.Error == "" {
			view.Error = c.Error
		}
	}
	return view
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
