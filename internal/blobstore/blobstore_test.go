/*
Copyright 2024 Fieldsync Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/internal/apierror"
)

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = input
	if input.Body != nil {
		f.body, _ = io.ReadAll(input.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Upload(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3StoreWithClient(fake, config.StorageConfig{Bucket: "receipts", Region: "ap-northeast-1"})

	url, err := store.Upload(context.Background(), "user_1/1714554000000.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://receipts.s3.ap-northeast-1.amazonaws.com/user_1/1714554000000.jpg", url)
	assert.Equal(t, "receipts", aws.StringValue(fake.input.Bucket))
	assert.Equal(t, "user_1/1714554000000.jpg", aws.StringValue(fake.input.Key))
	assert.Equal(t, "image/jpeg", aws.StringValue(fake.input.ContentType))
	assert.Equal(t, []byte("jpeg"), fake.body)
}

func TestS3Store_PublicURL(t *testing.T) {
	withBase := NewS3StoreWithClient(&fakeS3{}, config.StorageConfig{Bucket: "receipts", PublicBaseURL: "https://cdn.example.com/receipts/"})
	assert.Equal(t, "https://cdn.example.com/receipts/a/1.png", withBase.PublicURL("a/1.png"))

	withEndpoint := NewS3StoreWithClient(&fakeS3{}, config.StorageConfig{Bucket: "receipts", Endpoint: "http://localhost:9000"})
	assert.Equal(t, "http://localhost:9000/receipts/a/1.png", withEndpoint.PublicURL("a/1.png"))
}

func TestS3Store_UploadErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apierror.ErrorCode
	}{
		{"network", awserr.New(request.ErrCodeRequestError, "send request failed", errors.New("dial tcp: i/o timeout")), apierror.ErrConnectivity},
		{"forbidden", awserr.NewRequestFailure(awserr.New("AccessDenied", "Access Denied", nil), 403, "req-1"), apierror.ErrForbidden},
		{"unauthorized", awserr.NewRequestFailure(awserr.New("InvalidToken", "expired", nil), 401, "req-2"), apierror.ErrUnauthorized},
		{"too large", awserr.NewRequestFailure(awserr.New("EntityTooLarge", "too large", nil), 400, "req-3"), apierror.ErrInvalidInput},
		{"unavailable", awserr.NewRequestFailure(awserr.New("ServiceUnavailable", "slow down", nil), 503, "req-4"), apierror.ErrConnectivity},
		{"other", errors.New("boom"), apierror.ErrInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewS3StoreWithClient(&fakeS3{err: tt.err}, config.StorageConfig{Bucket: "receipts"})
			_, err := store.Upload(context.Background(), "k", nil, "image/png")
			assert.Equal(t, tt.code, apierror.CodeOf(err))
		})
	}
}

func TestReadAttachment(t *testing.T) {
	dir := t.TempDir()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	path := filepath.Join(dir, "receipt")
	require.NoError(t, os.WriteFile(path, png, 0o600))

	att, err := ReadAttachment("file://" + path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.ContentType)
	assert.Equal(t, ".png", att.Extension)
	assert.Equal(t, png, att.Data)

	_, err = ReadAttachment(filepath.Join(dir, "missing.jpg"))
	assert.Equal(t, apierror.ErrInvalidInput, apierror.CodeOf(err))
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "user_1/1714554000000.jpg", ObjectKey("user_1", at, ".jpg"))
	assert.Equal(t, "user_1/1714554000000.png", ObjectKey("user_1", at, "png"))
	assert.Equal(t, "user_1/1714554000000", ObjectKey("user_1", at, ""))
}
