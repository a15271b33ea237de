package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore/blobtest"
)

// fakeS3 — хранилище объектов в памяти, имитирующее ответы S3.
type fakeS3 struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string][]byte
	metadata map[string]map[string]string
	lengths  map[string]int64
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:   bucket,
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
		lengths:  make(map[string]int64),
	}
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.metadata[key] = in.Metadata
	f.lengths[key] = aws.ToInt64(in.ContentLength)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestStore_Contract(t *testing.T) {
	fake := newFakeS3("drive")
	s, err := NewWithClient(context.Background(), fake, "drive", "", afero.NewMemMapFs())
	require.NoError(t, err)

	blobtest.Run(t, s)
}

func TestNewWithClient_BucketUnavailable(t *testing.T) {
	fake := newFakeS3("drive")

	_, err := NewWithClient(context.Background(), fake, "other", "", afero.NewMemMapFs())
	require.Error(t, err)

	_, err = NewWithClient(context.Background(), fake, "", "", afero.NewMemMapFs())
	require.Error(t, err)
}

func TestPut_PrefixAndMetadata(t *testing.T) {
	fake := newFakeS3("drive")
	spool := afero.NewMemMapFs()
	s, err := NewWithClient(context.Background(), fake, "drive", "tenant-a", spool)
	require.NoError(t, err)

	res, err := s.Put(context.Background(), "u1/20260101/f.bin", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)

	stored, ok := fake.objects["tenant-a/u1/20260101/f.bin"]
	require.True(t, ok, "объект должен быть записан с префиксом")
	assert.Equal(t, "payload", string(stored))
	assert.Equal(t, int64(7), fake.lengths["tenant-a/u1/20260101/f.bin"])
	assert.Equal(t, res.Checksum, fake.metadata["tenant-a/u1/20260101/f.bin"]["sha256"])

	// Буфер удаляется после отправки
	entries, _ := afero.ReadDir(spool, os.TempDir())
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "drive-s3-")
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.False(t, isNotFound(errors.New("connection refused")))
}
