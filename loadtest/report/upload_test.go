// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestParseS3URI(t *testing.T) {
	testCases := []struct {
		uri    string
		bucket string
		prefix string
		err    bool
	}{
		{"s3://reports", "reports", "", false},
		{"s3://reports/", "reports", "", false},
		{"s3://reports/ltengine/nightly/", "reports", "ltengine/nightly", false},
		{"https://reports/ltengine", "", "", true},
		{"s3:///ltengine", "", "", true},
		{"reports", "", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.uri, func(t *testing.T) {
			bucket, prefix, err := ParseS3URI(tc.uri)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.bucket, bucket)
			require.Equal(t, tc.prefix, prefix)
		})
	}
}

func TestS3Upload(t *testing.T) {
	r := New(newTestResult(), newTestConfig())

	t.Run("success", func(t *testing.T) {
		fake := &fakePutter{objects: map[string][]byte{}, types: map[string]string{}}
		u := NewS3UploaderWithClient(fake, "reports", "nightly")

		keys, err := u.Upload(context.Background(), r)
		require.NoError(t, err)
		id := r.Result.ID
		require.Equal(t, []string{"nightly/" + id + ".json", "nightly/" + id + ".md"}, keys)
		require.Equal(t, "application/json", fake.types["reports/nightly/"+id+".json"])
		require.Equal(t, "text/markdown", fake.types["reports/nightly/"+id+".md"])

		var uploaded Report
		require.NoError(t, json.Unmarshal(fake.objects["reports/nightly/"+id+".json"], &uploaded))
		require.Equal(t, r.Analysis, uploaded.Analysis)
		require.Contains(t, string(fake.objects["reports/nightly/"+id+".md"]), "## Load test report")
	})

	t.Run("client error", func(t *testing.T) {
		fake := &fakePutter{err: errors.New("access denied")}
		u := NewS3UploaderWithClient(fake, "reports", "")
		keys, err := u.Upload(context.Background(), r)
		require.ErrorContains(t, err, "access denied")
		require.Empty(t, keys)
	})

	t.Run("empty report", func(t *testing.T) {
		u := NewS3UploaderWithClient(&fakePutter{}, "reports", "")
		_, err := u.Upload(context.Background(), &Report{})
		require.Error(t, err)
	})
}
