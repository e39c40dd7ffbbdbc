package evidence

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

// RunsPrefix is the key prefix every evidence record is stored under
const RunsPrefix = "runs/"

// ErrExists is returned when a key has already been written
var ErrExists = errors.New("evidence record already exists")

// Object is a stored record's key and write time
type Object struct {
	Key          string
	LastModified time.Time
}

// Store persists evidence records. Put never overwrites an existing key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// Location names the bucket or directory for run results
	Location() string
}

// Kind is the final key segment; it says which path the run took
type Kind string

const (
	KindAudit       Kind = "audit"
	KindContainment Kind = "containment"
	KindError       Kind = "error"
)

// KindFor maps a successful run's mode onto its record kind
func KindFor(mode models.Mode) Kind {
	if mode == models.ModeContainment {
		return KindContainment
	}
	return KindAudit
}

// Key returns runs/<timestamp>/<kind>.json
func Key(timestamp int64, kind Kind) string {
	return path.Join(RunsPrefix, fmt.Sprint(timestamp), string(kind)+".json")
}

// Latest returns the most recently written object, or false when there are none
func Latest(objects []Object) (Object, bool) {
	if len(objects) == 0 {
		return Object{}, false
	}
	latest := objects[0]
	for _, o := range objects[1:] {
		if o.LastModified.After(latest.LastModified) ||
			(o.LastModified.Equal(latest.LastModified) && o.Key > latest.Key) {
			latest = o
		}
	}
	return latest, true
}
