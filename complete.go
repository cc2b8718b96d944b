package tos

import (
	"context"

	"github.com/ares89/ve-tos-go-sdk/internal/requester"
)

// CompletedPart identifies one previously-uploaded part by number and ETag.
type CompletedPart = requester.CompletedPart

// CompleteMultipartUploadInput finalizes an upload session started outside
// of UploadFile (e.g. one assembled from parts uploaded by another
// process). Exactly one of CompleteAll or a non-empty Parts must be set.
type CompleteMultipartUploadInput struct {
	Bucket          string
	Key             string
	UploadID        string
	Parts           []CompletedPart
	CompleteAll     bool
	ForbidOverwrite bool
}

// CompleteMultipartUploadOutput carries the finished object's identity.
type CompleteMultipartUploadOutput struct {
	Bucket, Key, VersionID string
	ETag                   string
	Location               string
	HashCrc64Ecma          string
}

// CompleteMultipartUpload finalizes uploadId. Passing both CompleteAll and
// a non-empty Parts is a ClientUsageError raised before any HTTP request is
// issued (scenario: "Should not specify both 'completeAll' and 'parts'
// params.").
func (c *Client) CompleteMultipartUpload(ctx context.Context, in *CompleteMultipartUploadInput) (*CompleteMultipartUploadOutput, error) {
	if in.CompleteAll && len(in.Parts) > 0 {
		return nil, &ClientUsageError{Message: "should not specify both 'completeAll' and 'parts' params"}
	}

	out, err := c.requester.CompleteMultipartUpload(ctx, &requester.CompleteMultipartUploadInput{
		Bucket:          in.Bucket,
		Key:             in.Key,
		UploadID:        in.UploadID,
		Parts:           in.Parts,
		CompleteAll:     in.CompleteAll,
		ForbidOverwrite: in.ForbidOverwrite,
	})
	if err != nil {
		return nil, err
	}

	return &CompleteMultipartUploadOutput{
		Bucket:        in.Bucket,
		Key:           in.Key,
		ETag:          out.ETag,
		Location:      out.Location,
		HashCrc64Ecma: out.HashCrc64Ecma,
	}, nil
}
