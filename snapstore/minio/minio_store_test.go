package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/condset/snapstore"
)

func TestMinioStore_Integration(t *testing.T) {
	bucket := "test-condset"

	client, err := Dial("localhost:9000", "minioadmin", "minioadmin", false)
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "integration")

	require.NoError(t, store.Put(ctx, "chr20.snap", []byte("table")))
	data, err := store.Get(ctx, "chr20.snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("table"), data)

	_, err = store.Get(ctx, "missing.snap")
	assert.ErrorIs(t, err, snapstore.ErrNotFound)
}

func TestMapErr(t *testing.T) {
	err := minio.ErrorResponse{Code: "NoSuchKey"}
	assert.ErrorIs(t, mapErr(err), snapstore.ErrNotFound)

	other := minio.ErrorResponse{Code: "AccessDenied"}
	assert.Equal(t, error(other), mapErr(other))
}
