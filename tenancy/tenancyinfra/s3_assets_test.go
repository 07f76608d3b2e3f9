package tenancyinfra_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/Abraxas-365/multistore/tenancy/tenancyinfra"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeS3 guarda objetos en memoria; pageSize fuerza la paginación
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]bool
	pageSize int
	putErr   error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]bool), pageSize: 2}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = true
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestAssetsHookProvisionAndDeprovision(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	hook := tenancyinfra.NewAssetsHook(client, "assets", zap.NewNop())

	acme := &tenancy.Tenant{ID: "acme"}
	other := &tenancy.Tenant{ID: "acme2"}

	assert.Equal(t, "assets", hook.Name())
	assert.False(t, hook.NeedsContext())

	require.NoError(t, hook.Provision(ctx, acme))
	require.NoError(t, hook.Provision(ctx, other))
	assert.Equal(t, []string{"tenants/acme/.keep", "tenants/acme2/.keep"}, client.keys())

	for _, name := range []string{"logo.png", "banner.png", "products/1.jpg", "products/2.jpg"} {
		client.objects[hook.Prefix(acme)+name] = true
	}

	require.NoError(t, hook.Deprovision(ctx, acme))
	assert.Equal(t, []string{"tenants/acme2/.keep"}, client.keys(), "only the deleted tenant's prefix is emptied")
}

func TestAssetsHookProvisionFailure(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("access denied")
	hook := tenancyinfra.NewAssetsHook(client, "assets", zap.NewNop())

	err := hook.Provision(context.Background(), &tenancy.Tenant{ID: "acme"})
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeExternal))
}
