package evidence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/models"
)

type fakeObject struct {
	data     []byte
	modified time.Time
}

// fakeS3 is an in-memory bucket that honors If-None-Match and pages listings
type fakeS3 struct {
	objects  map[string]fakeObject
	pageSize int
	clock    time.Time
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:  map[string]fakeObject{},
		pageSize: 2,
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	if _, ok := f.objects[key]; ok && aws.ToString(params.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.clock = f.clock.Add(time.Minute)
	f.objects[key] = fakeObject{data: data, modified: f.clock}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) && key > aws.ToString(params.ContinuationToken) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for i, key := range keys {
		if i == f.pageSize {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(keys[i-1])
			break
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			LastModified: aws.Time(f.objects[key].modified),
		})
	}
	return out, nil
}

func TestKey(t *testing.T) {
	assert.Equal(t, "runs/1700000000/containment.json", Key(1700000000, KindContainment))
	assert.Equal(t, "runs/1700000000/audit.json", Key(1700000000, KindFor(models.ModeAudit)))
	assert.Equal(t, "runs/1700000000/error.json", Key(1700000000, KindError))
	assert.Equal(t, KindContainment, KindFor(models.ModeContainment))
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	base := time.Unix(1700000000, 0)
	latest, ok := Latest([]Object{
		{Key: "runs/1/audit.json", LastModified: base},
		{Key: "runs/3/containment.json", LastModified: base.Add(2 * time.Second)},
		{Key: "runs/2/error.json", LastModified: base.Add(time.Second)},
	})
	require.True(t, ok)
	assert.Equal(t, "runs/3/containment.json", latest.Key)
}

func TestS3Store(t *testing.T) {
	api := newFakeS3()
	store := NewS3Store(api, "evidence-bucket")
	ctx := context.Background()
	assert.Equal(t, "evidence-bucket", store.Location())

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Put(ctx, Key(int64(i), KindAudit), []byte(fmt.Sprintf(`{"n":%d}`, i))))
	}

	err := store.Put(ctx, Key(1, KindAudit), []byte(`{"n":99}`))
	assert.ErrorIs(t, err, ErrExists)

	objects, err := store.List(ctx, RunsPrefix)
	require.NoError(t, err)
	assert.Len(t, objects, 5)

	latest, ok := Latest(objects)
	require.True(t, ok)
	assert.Equal(t, Key(5, KindAudit), latest.Key)

	data, err := store.Get(ctx, Key(1, KindAudit))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(data))

	_, err = store.Get(ctx, "runs/missing.json")
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileStore(fs, "/var/evidence")
	ctx := context.Background()

	objects, err := store.List(ctx, RunsPrefix)
	require.NoError(t, err)
	assert.Empty(t, objects)

	require.NoError(t, store.Put(ctx, Key(100, KindContainment), []byte(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, Key(101, KindError), []byte(`{"b":2}`)))
	require.NoError(t, afero.WriteFile(fs, "/var/evidence/notes.txt", []byte("x"), 0o644))

	err = store.Put(ctx, Key(100, KindContainment), []byte(`{"a":2}`))
	assert.ErrorIs(t, err, ErrExists)

	data, err := store.Get(ctx, Key(100, KindContainment))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	objects, err = store.List(ctx, RunsPrefix)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	keys := []string{objects[0].Key, objects[1].Key}
	assert.ElementsMatch(t, []string{"runs/100/containment.json", "runs/101/error.json"}, keys)
}
