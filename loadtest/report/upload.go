// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of the S3 client used to archive reports.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader archives reports to an S3 bucket.
type S3Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
}

// ParseS3URI splits an s3://bucket/prefix URI into its bucket and key
// prefix.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid S3 URI %q: scheme must be s3", uri)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: missing bucket", uri)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// NewS3Uploader returns an uploader writing to the location described by
// uri, using the default AWS credential chain. An empty region falls back to
// the one configured in the environment.
func NewS3Uploader(ctx context.Context, uri, region string) (*S3Uploader, error) {
	bucket, prefix, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3UploaderWithClient returns an uploader using the given client.
func NewS3UploaderWithClient(client ObjectPutter, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Upload stores the report as JSON and markdown objects named after the
// test id. It returns the keys that were written.
func (u *S3Uploader) Upload(ctx context.Context, r *Report) ([]string, error) {
	if r == nil || r.Result == nil || r.Result.ID == "" {
		return nil, errors.New("report has no result")
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	var md bytes.Buffer
	r.WriteMarkdown(&md)

	objects := []struct {
		key         string
		body        []byte
		contentType string
	}{
		{path.Join(u.prefix, r.Result.ID+".json"), data, "application/json"},
		{path.Join(u.prefix, r.Result.ID+".md"), md.Bytes(), "text/markdown"},
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(obj.key),
			Body:        bytes.NewReader(obj.body),
			ContentType: aws.String(obj.contentType),
		})
		if err != nil {
			return keys, fmt.Errorf("failed to upload %s to bucket %s: %w", obj.key, u.bucket, err)
		}
		keys = append(keys, obj.key)
	}
	return keys, nil
}
