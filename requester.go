package tos

import "github.com/ares89/ve-tos-go-sdk/internal/requester"

// Requester is the small request interface the transfer engine drives:
// HEAD, ranged GET, and the multipart-upload lifecycle. internal/requester.
// S3Requester is the default implementation over aws-sdk-go-v2/service/s3.
// WithRequester accepts any other implementation, but the method signatures
// use internal/requester types that are not re-exported here (ObjectMeta and
// the CompleteMultipartUpload input/output), so only code inside this module
// can write one.
type Requester = requester.Requester

type (
	HeadObjectInput      = requester.HeadObjectInput
	GetObjectInput       = requester.GetObjectInput
	GetObjectOutput      = requester.GetObjectOutput
	CreateMultipartUploadInput  = requester.CreateMultipartUploadInput
	CreateMultipartUploadOutput = requester.CreateMultipartUploadOutput
	UploadPartInput       = requester.UploadPartInput
	UploadPartOutput      = requester.UploadPartOutput
	AbortMultipartUploadInput = requester.AbortMultipartUploadInput
)
