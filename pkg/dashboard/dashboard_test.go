package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/evidence"
	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

type fakeStore struct {
	objects []evidence.Object
	records map[string][]byte
	gets    []string
	listErr error
}

func (f *fakeStore) Put(context.Context, string, []byte) error { return errors.New("read only") }

func (f *fakeStore) List(context.Context, string) ([]evidence.Object, error) {
	return f.objects, f.listErr
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.gets = append(f.gets, key)
	data, ok := f.records[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (f *fakeStore) Location() string { return "test" }

func (f *fakeStore) add(t *testing.T, key string, modified time.Time, record models.EvidenceRecord) {
	t.Helper()
	data, err := record.Marshal()
	require.NoError(t, err)
	if f.records == nil {
		f.records = map[string][]byte{}
	}
	f.records[key] = data
	f.objects = append(f.objects, evidence.Object{Key: key, LastModified: modified})
}

func TestRenderEmptyStore(t *testing.T) {
	store := &fakeStore{}

	page, err := New(store).Render(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(page), "No containment runs have been recorded yet.")
	assert.Empty(t, store.gets)
}

func TestRenderLatestRun(t *testing.T) {
	store := &fakeStore{}
	base := time.Unix(1714564800, 0)
	store.add(t, "runs/1714564800/audit.json", base, models.EvidenceRecord{
		Request: models.ContainmentRequest{Mode: models.ModeAudit, Timestamp: 1714564800},
		Cluster: &models.ClusterSnapshot{Name: "prod", Status: "ACTIVE", Version: "1.29"},
	})
	store.add(t, "runs/1714568400/containment.json", base.Add(time.Hour), models.EvidenceRecord{
		Request: models.ContainmentRequest{Mode: models.ModeContainment, Namespace: "prod-compromised", Timestamp: 1714568400},
		Cluster: &models.ClusterSnapshot{Name: "prod", Status: "ACTIVE", Version: "1.30", EndpointPrivate: true},
		Containment: &models.ContainmentOutcome{
			Status:        models.StatusApplied,
			NetworkPolicy: models.StatusAlreadyContained,
		},
	})

	page, err := New(store).Render(context.Background())
	require.NoError(t, err)
	html := string(page)

	assert.Equal(t, []string{"runs/1714568400/containment.json"}, store.gets)
	assert.Contains(t, html, "2024-05-01 13:00:00Z")
	assert.Contains(t, html, "<dd>containment</dd>")
	assert.Contains(t, html, "<dd>ACTIVE</dd>")
	assert.Contains(t, html, "<dd>1.30</dd>")
	assert.Contains(t, html, "<dd>enabled</dd>")
	assert.Contains(t, html, "<dd>disabled</dd>")
	assert.Contains(t, html, "<dd>prod-compromised</dd>")
	assert.Contains(t, html, "<dd>Applied</dd>")
	assert.Contains(t, html, "<dd>AlreadyContained</dd>")
	assert.Contains(t, html, "<code>runs/1714568400/containment.json</code>")
}

func TestRenderEscapesRecordContent(t *testing.T) {
	store := &fakeStore{}
	store.add(t, "runs/1/error.json", time.Unix(1, 0), models.EvidenceRecord{
		Request: models.ContainmentRequest{Namespace: "<script>alert(1)</script>"},
		Error:   "describe failed",
	})

	page, err := New(store).Render(context.Background())
	require.NoError(t, err)
	html := string(page)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "describe failed")
}

func TestNewViewErrorRecord(t *testing.T) {
	view := NewView("runs/5/error.json", models.EvidenceRecord{Error: "AccessDenied"})
	assert.Equal(t, unknown, view.RunTime)
	assert.Equal(t, models.ModeAudit, view.Mode)
	assert.Equal(t, unknown, view.ClusterStatus)
	assert.Equal(t, unknown, view.EndpointPublic)
	assert.Equal(t, "AccessDenied", view.Error)
}

func TestRenderListFailure(t *testing.T) {
	_, err := New(&fakeStore{listErr: errors.New("denied")}).Render(context.Background())
	assert.Error(t, err)
}
