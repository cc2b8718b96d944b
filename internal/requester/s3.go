package requester

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	tosconfig "github.com/ares89/ve-tos-go-sdk/internal/config"
)

// headerCrc64ecma is the response header a TOS-compatible endpoint sets with
// the whole (or per-part) object's CRC64 ECMA digest. The generic S3 API
// surface aws-sdk-go-v2 exposes does not model this header, so S3Requester
// captures it via a response middleware instead of an SDK field.
const headerCrc64ecma = "X-Tos-Hash-Crc64ecma"

// headerObjectType and headerSymlinkTargetSize identify a symlink object, whose
// own ContentLength is the link's size rather than the size a download plan
// must actually cover.
const (
	headerObjectType        = "X-Tos-Object-Type"
	headerSymlinkTargetSize = "X-Tos-Symlink-Target-Size"
	objectTypeSymlink       = "Symlink"
)

// ErrInvalidSymlinkTargetSize is returned by HeadObject when the object is a
// symlink but its x-tos-symlink-target-size header is not a base-10 integer.
type ErrInvalidSymlinkTargetSize struct {
	Value string
	Err   error
}

func (e *ErrInvalidSymlinkTargetSize) Error() string {
	return fmt.Sprintf("requester: invalid %s %q: %v", headerSymlinkTargetSize, e.Value, e.Err)
}
func (e *ErrInvalidSymlinkTargetSize) Unwrap() error { return e.Err }

// S3Requester implements Requester against a TOS-compatible S3 endpoint
// using aws-sdk-go-v2: a custom endpoint resolver, path-style addressing,
// and region/credentials from a static provider rather than the ambient
// AWS credential chain.
type S3Requester struct {
	client *s3.Client
}

// NewS3Requester builds an S3Requester from a resolved Config.
func NewS3Requester(ctx context.Context, cfg *tosconfig.Config, httpClient *nethttp.Client) (*S3Requester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	resolver := s3.EndpointResolverV2(staticEndpointResolver{endpoint: cfg.Endpoint})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SecurityToken)),
	)
	if err != nil {
		return nil, fmt.Errorf("tos: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.EndpointResolverV2 = resolver
	})

	return &S3Requester{client: client}, nil
}

func (r *S3Requester) HeadObject(ctx context.Context, in *HeadObjectInput) (*ObjectMeta, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
	}
	if in.VersionID != "" {
		input.VersionId = aws.String(in.VersionID)
	}
	if in.IfMatch != "" {
		input.IfMatch = aws.String(in.IfMatch)
	}
	if in.IfNoneMatch != "" {
		input.IfNoneMatch = aws.String(in.IfNoneMatch)
	}
	if !in.IfModifiedSince.IsZero() {
		input.IfModifiedSince = aws.Time(in.IfModifiedSince)
	}
	if !in.IfUnmodifiedSince.IsZero() {
		input.IfUnmodifiedSince = aws.Time(in.IfUnmodifiedSince)
	}
	if in.SSECAlgorithm != "" {
		input.SSECustomerAlgorithm = aws.String(in.SSECAlgorithm)
		input.SSECustomerKey = aws.String(in.SSECKey)
		input.SSECustomerKeyMD5 = aws.String(in.SSECKeyMD5)
	}

	var headers nethttp.Header
	out, err := r.client.HeadObject(ctx, input, captureHeaders(&headers))
	if err != nil {
		return nil, err
	}

	objectSize := aws.ToInt64(out.ContentLength)
	if headers.Get(headerObjectType) == objectTypeSymlink {
		raw := headers.Get(headerSymlinkTargetSize)
		parsed, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return nil, &ErrInvalidSymlinkTargetSize{Value: raw, Err: perr}
		}
		objectSize = parsed
	}

	meta := &ObjectMeta{
		HashCrc64Ecma: headers.Get(headerCrc64ecma),
		ObjectSize:    objectSize,
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	if out.VersionId != nil {
		meta.VersionID = *out.VersionId
	}
	return meta, nil
}

func (r *S3Requester) GetObject(ctx context.Context, in *GetObjectInput) (*GetObjectOutput, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", in.RangeStart, in.RangeEnd)),
	}
	if in.VersionID != "" {
		input.VersionId = aws.String(in.VersionID)
	}
	if in.IfMatch != "" {
		input.IfMatch = aws.String(in.IfMatch)
	}
	if in.SSECAlgorithm != "" {
		input.SSECustomerAlgorithm = aws.String(in.SSECAlgorithm)
		input.SSECustomerKey = aws.String(in.SSECKey)
		input.SSECustomerKeyMD5 = aws.String(in.SSECKeyMD5)
	}

	var headers nethttp.Header
	opts := []func(*s3.Options){captureHeaders(&headers)}
	if in.TrafficLimit > 0 {
		opts = append(opts, withTrafficLimitHeader(in.TrafficLimit))
	}
	out, err := r.client.GetObject(ctx, input, opts...)
	if err != nil {
		return nil, err
	}

	meta := ObjectMeta{HashCrc64Ecma: headers.Get(headerCrc64ecma)}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.ContentLength != nil {
		meta.ObjectSize = *out.ContentLength
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	if out.VersionId != nil {
		meta.VersionID = *out.VersionId
	}

	return &GetObjectOutput{Body: out.Body, Meta: meta}, nil
}

func (r *S3Requester) CreateMultipartUpload(ctx context.Context, in *CreateMultipartUploadInput) (*CreateMultipartUploadOutput, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(in.Bucket),
		Key:    aws.String(in.Key),
	}
	if in.SSECAlgorithm != "" {
		input.SSECustomerAlgorithm = aws.String(in.SSECAlgorithm)
		input.SSECustomerKey = aws.String(in.SSECKey)
		input.SSECustomerKeyMD5 = aws.String(in.SSECKeyMD5)
	}

	out, err := r.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, err
	}
	return &CreateMultipartUploadOutput{UploadID: aws.ToString(out.UploadId)}, nil
}

func (r *S3Requester) UploadPart(ctx context.Context, in *UploadPartInput) (*UploadPartOutput, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		UploadId:      aws.String(in.UploadID),
		PartNumber:    aws.Int32(int32(in.PartNumber)),
		Body:          in.Body,
		ContentLength: aws.Int64(in.ContentLength),
	}
	if in.SSECAlgorithm != "" {
		input.SSECustomerAlgorithm = aws.String(in.SSECAlgorithm)
		input.SSECustomerKey = aws.String(in.SSECKey)
		input.SSECustomerKeyMD5 = aws.String(in.SSECKeyMD5)
	}

	var opts []func(*s3.Options)
	if in.TrafficLimit > 0 {
		opts = append(opts, withTrafficLimitHeader(in.TrafficLimit))
	}
	out, err := r.client.UploadPart(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return &UploadPartOutput{ETag: aws.ToString(out.ETag)}, nil
}

func (r *S3Requester) CompleteMultipartUpload(ctx context.Context, in *CompleteMultipartUploadInput) (*CompleteMultipartUploadOutput, error) {
	completeInput := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(in.Bucket),
		Key:      aws.String(in.Key),
		UploadId: aws.String(in.UploadID),
	}
	if !in.CompleteAll {
		parts := make([]types.CompletedPart, 0, len(in.Parts))
		for _, p := range in.Parts {
			parts = append(parts, types.CompletedPart{
				PartNumber: aws.Int32(int32(p.PartNumber)),
				ETag:       aws.String(p.ETag),
			})
		}
		completeInput.MultipartUpload = &types.CompletedMultipartUpload{Parts: parts}
	}

	var headers nethttp.Header
	opts := []func(*s3.Options){captureHeaders(&headers)}
	if in.CompleteAll {
		opts = append(opts, withRequestHeader("x-tos-complete-all", "yes"))
	}
	if in.ForbidOverwrite {
		opts = append(opts, withRequestHeader("x-tos-forbid-overwrite", "true"))
	}
	out, err := r.client.CompleteMultipartUpload(ctx, completeInput, opts...)
	if err != nil {
		return nil, err
	}

	result := &CompleteMultipartUploadOutput{
		ETag:          aws.ToString(out.ETag),
		HashCrc64Ecma: headers.Get(headerCrc64ecma),
	}
	if out.Location != nil {
		result.Location = *out.Location
	}
	return result, nil
}

func (r *S3Requester) AbortMultipartUpload(ctx context.Context, in *AbortMultipartUploadInput) error {
	_, err := r.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(in.Bucket),
		Key:      aws.String(in.Key),
		UploadId: aws.String(in.UploadID),
	})
	return err
}

// captureHeaders registers a deserialize-step middleware that copies the raw
// HTTP response headers into dst, giving callers access to TOS-specific
// headers (like x-tos-hash-crc64ecma) that the generic S3 operation output
// shapes don't model.
func captureHeaders(dst *nethttp.Header) func(*s3.Options) {
	return func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
			return stack.Deserialize.Add(middleware.DeserializeMiddlewareFunc(
				"CaptureRawHeaders",
				func(ctx context.Context, in middleware.DeserializeInput, next middleware.DeserializeHandler) (
					middleware.DeserializeOutput, middleware.Metadata, error,
				) {
					out, metadata, err := next.HandleDeserialize(ctx, in)
					if resp, ok := out.RawResponse.(*smithyhttp.Response); ok {
						*dst = resp.Header
					}
					return out, metadata, err
				},
			), middleware.After)
		})
	}
}

// withRequestHeader registers a serialize-step middleware that sets a
// single header on the outgoing HTTP request, the same customization point
// captureHeaders uses on the response side. It backs the completeAll and
// forbidOverwrite header passthrough TOS expects in place of a body.
func withRequestHeader(key, value string) func(*s3.Options) {
	return func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
			return stack.Serialize.Add(middleware.SerializeMiddlewareFunc(
				"Set"+key,
				func(ctx context.Context, in middleware.SerializeInput, next middleware.SerializeHandler) (
					middleware.SerializeOutput, middleware.Metadata, error,
				) {
					if req, ok := in.Request.(*smithyhttp.Request); ok {
						req.Header.Set(key, value)
					}
					return next.HandleSerialize(ctx, in)
				},
			), middleware.After)
		})
	}
}

// withTrafficLimitHeader sets the server-side bandwidth cap TOS honors on
// GET/PUT part requests, independent of the client-side rate limiter.
func withTrafficLimitHeader(bitsPerSecond int64) func(*s3.Options) {
	return withRequestHeader("x-tos-traffic-limit", fmt.Sprintf("%d", bitsPerSecond))
}

// staticEndpointResolver points every S3 operation at a single
// TOS-compatible endpoint.
type staticEndpointResolver struct {
	endpoint string
}

func (s staticEndpointResolver) ResolveEndpoint(ctx context.Context, params s3.EndpointParameters) (smithyhttp.Endpoint, error) {
	uri := s.endpoint
	if uri == "" {
		return smithyhttp.Endpoint{}, fmt.Errorf("tos: empty endpoint")
	}
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		uri = "https://" + uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return smithyhttp.Endpoint{}, fmt.Errorf("tos: parse endpoint %q: %w", s.endpoint, err)
	}
	return smithyhttp.Endpoint{URI: *u}, nil
}
