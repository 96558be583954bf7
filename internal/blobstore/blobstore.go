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

// Package blobstore uploads receipt images to S3-compatible object storage.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/internal/apierror"
)

// Store puts an object at path and returns its public URL. Writing the same
// path twice overwrites the object.
type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (publicURL string, err error)
}

type S3Store struct {
	client        s3iface.S3API
	bucket        string
	region        string
	endpoint      string
	publicBaseURL string
}

// NewS3Store builds a client from the storage configuration. Static credentials
// are used when configured, otherwise the default AWS credential chain.
func NewS3Store(cnf config.StorageConfig) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cnf.Region),
		S3ForcePathStyle: aws.Bool(cnf.ForcePathStyle),
	}
	if cnf.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cnf.Endpoint)
	}
	if cnf.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cnf.AccessKeyID, cnf.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), cnf), nil
}

func NewS3StoreWithClient(client s3iface.S3API, cnf config.StorageConfig) *S3Store {
	return &S3Store{
		client:        client,
		bucket:        cnf.Bucket,
		region:        cnf.Region,
		endpoint:      cnf.Endpoint,
		publicBaseURL: cnf.PublicBaseURL,
	}
}

func (s *S3Store) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", mapError(err, path)
	}

	logrus.WithFields(logrus.Fields{"bucket": s.bucket, "key": path, "size": len(data)}).Info("receipt uploaded")
	return s.PublicURL(path), nil
}

// PublicURL is where a stored object can be fetched from.
func (s *S3Store) PublicURL(path string) string {
	switch {
	case s.publicBaseURL != "":
		return strings.TrimRight(s.publicBaseURL, "/") + "/" + path
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, path)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, path)
	}
}

// mapError maps storage failures onto API errors. Transport failures and 5xx
// answers are connectivity problems; 4xx answers are surfaced.
func mapError(err error, path string) error {
	msg := fmt.Sprintf("failed to upload %s", path)

	if reqErr, ok := err.(awserr.RequestFailure); ok {
		switch code := reqErr.StatusCode(); {
		case code == http.StatusUnauthorized:
			return apierror.NewAPIError(apierror.ErrUnauthorized, msg, err)
		case code == http.StatusForbidden:
			return apierror.NewAPIError(apierror.ErrForbidden, msg, err)
		case code >= 500:
			return apierror.NewAPIError(apierror.ErrConnectivity, msg, err)
		case code >= 400:
			return apierror.NewAPIError(apierror.ErrInvalidInput, msg, err)
		}
	}

	if awsErr, ok := err.(awserr.Error); ok {
		switch awsErr.Code() {
		case request.ErrCodeRequestError, request.CanceledErrorCode, request.ErrCodeResponseTimeout:
			return apierror.NewAPIError(apierror.ErrConnectivity, msg, err)
		}
	}

	if apierror.IsConnectivity(err) {
		return apierror.NewAPIError(apierror.ErrConnectivity, msg, err)
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, msg, err)
}
