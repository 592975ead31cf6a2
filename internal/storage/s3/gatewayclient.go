package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gatewayfs/gatewayfs/internal/gateway"
)

// GatewayClient adapts Backend to gateway.BackendClient: every call reports
// an HTTP-style status alongside its error, the shape the gateway's
// response classifier expects, instead of Backend's own Go-error-only
// methods. It talks to the pool's S3 client directly for the calls Backend
// doesn't expose (server-side copy, multipart), reusing Backend's
// connection pool, bucket, and tier validator.
type GatewayClient struct {
	backend   *Backend
	multipart *MultipartStateManager
}

// NewGatewayClient wraps backend for use as a gateway.BackendClient.
func NewGatewayClient(backend *Backend) *GatewayClient {
	return &GatewayClient{
		backend:   backend,
		multipart: NewMultipartStateManager(),
	}
}

func (c *GatewayClient) HeadBucket(ctx context.Context) (int, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.backend.bucket)})
	if err != nil {
		return statusForErr(err), err
	}
	return 200, nil
}

func (c *GatewayClient) HeadObject(ctx context.Context, key string, ifModifiedSince *time.Time) (int, map[string]string, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	input := &s3.HeadObjectInput{Bucket: aws.String(c.backend.bucket), Key: aws.String(key)}
	if ifModifiedSince != nil {
		input.IfModifiedSince = ifModifiedSince
	}

	result, err := client.HeadObject(ctx, input)
	if err != nil {
		return statusForErr(err), nil, err
	}

	hdrs := map[string]string{
		"Content-Type": aws.ToString(result.ContentType),
		"ETag":         aws.ToString(result.ETag),
	}
	if sc := string(result.StorageClass); sc != "" {
		hdrs["Storage-Class"] = sc
	} else {
		// HeadObject omits StorageClass for objects stored at the
		// default Standard tier.
		hdrs["Storage-Class"] = TierStandard
	}
	return 200, hdrs, nil
}

func (c *GatewayClient) GetObject(ctx context.Context, key string, rangeStart, rangeLen int64) (int, []byte, string, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	input := &s3.GetObjectInput{Bucket: aws.String(c.backend.bucket), Key: aws.String(key)}
	if rangeStart > 0 || rangeLen > 0 {
		if rangeLen > 0 {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", rangeStart, rangeStart+rangeLen-1))
		} else {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-", rangeStart))
		}
	}

	result, err := client.GetObject(ctx, input)
	if err != nil {
		return statusForErr(err), nil, "", err
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return 500, nil, "", fmt.Errorf("reading object body: %w", err)
	}

	c.backend.mu.Lock()
	c.backend.metrics.BytesDownloaded += int64(len(body))
	c.backend.mu.Unlock()
	c.backend.costOptimizer.RecordAccess(key, int64(len(body)))

	return 200, body, aws.ToString(result.ETag), nil
}

// PutObject either issues a server-side copy (input.MoveSource set, used by
// MoveFile) or a normal content PUT, validated against the configured
// storage tier the same way Backend.PutObject does.
func (c *GatewayClient) PutObject(ctx context.Context, key string, input gateway.PutInput) (int, error) {
	if input.MoveSource != "" {
		client := c.backend.pool.Get()
		defer c.backend.pool.Put(client)

		copyInput := &s3.CopyObjectInput{
			Bucket:     aws.String(c.backend.bucket),
			Key:        aws.String(key),
			CopySource: aws.String(input.MoveSource[1:]), // strip leading "/" for the SDK's bucket/key form
		}
		if input.StorageClass != "" {
			copyInput.StorageClass = ConvertTierToStorageClass(input.StorageClass)
		}

		_, err := client.CopyObject(ctx, copyInput)
		if err != nil {
			return statusForErr(err), err
		}
		return 200, nil
	}

	// Delegate to Backend.PutObject so the CargoShip-optimized upload
	// path (when enabled) and the tier validator both run exactly as
	// they do for Backend's other callers.
	if err := c.backend.PutObject(ctx, key, input.Body); err != nil {
		return statusForErr(err), err
	}
	return 200, nil
}

func (c *GatewayClient) DeleteObject(ctx context.Context, key string) (int, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.backend.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return statusForErr(err), err
	}
	return 204, nil
}

func (c *GatewayClient) ListObjects(ctx context.Context, prefix, marker string, limit int) (gateway.ListPage, int, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.backend.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	if marker != "" {
		input.ContinuationToken = aws.String(marker)
	}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(limit))
	}

	result, err := client.ListObjectsV2(ctx, input)
	if err != nil {
		return gateway.ListPage{}, statusForErr(err), err
	}

	page := gateway.ListPage{
		Truncated: aws.ToBool(result.IsTruncated),
	}
	for _, obj := range result.Contents {
		page.Keys = append(page.Keys, aws.ToString(obj.Key))
	}
	for _, cp := range result.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	if page.Truncated {
		page.NextMarker = aws.ToString(result.NextContinuationToken)
	}
	return page, 200, nil
}

func (c *GatewayClient) InitiateMultipart(ctx context.Context, key string, input gateway.PutInput) (string, int, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	contentType := input.MimeType
	if contentType == "" {
		contentType = c.backend.detectContentType(key)
	}

	result, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:       aws.String(c.backend.bucket),
		Key:          aws.String(key),
		ContentType:  aws.String(contentType),
		StorageClass: ConvertTierToStorageClass(c.backend.currentTier),
	})
	if err != nil {
		return "", statusForErr(err), err
	}

	uploadID := aws.ToString(result.UploadId)
	c.multipart.TrackUpload(NewMultipartUploadState(uploadID, c.backend.bucket, key, 0, 0))
	return uploadID, 200, nil
}

func (c *GatewayClient) UploadPart(ctx context.Context, key, uploadID string, partNo int, body []byte) (string, int, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	result, err := client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(c.backend.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(int32(partNo)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		c.multipart.UpdatePartStatus(uploadID, partNo, 0, "", err)
		return "", statusForErr(err), err
	}

	etag := aws.ToString(result.ETag)
	c.multipart.UpdatePartStatus(uploadID, partNo, int64(len(body)), etag, nil)
	return etag, 200, nil
}

func (c *GatewayClient) CompleteMultipart(ctx context.Context, key, uploadID string, parts []gateway.CompletedPart) (int, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	completed := make([]s3types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, s3types.CompletedPart{
			PartNumber: aws.Int32(int32(p.PartNumber)),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.backend.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		c.multipart.MarkUploadFailed(uploadID)
		return statusForErr(err), err
	}

	c.multipart.MarkUploadCompleted(uploadID)
	c.multipart.RemoveUpload(uploadID)
	return 200, nil
}

func (c *GatewayClient) AbortMultipart(ctx context.Context, key, uploadID string) (int, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	_, err := client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.backend.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return statusForErr(err), err
	}

	c.multipart.RemoveUpload(uploadID)
	return 204, nil
}

// GetBucketStatistics walks the whole bucket with ListObjectsV2, summing
// size and count. There is no cheaper aggregate S3 API for this; callers
// that need it frequently are expected to cache the result (Statvfs's
// caller decides the refresh cadence, not this client).
func (c *GatewayClient) GetBucketStatistics(ctx context.Context) (gateway.BucketStats, int, error) {
	client := c.backend.pool.Get()
	defer c.backend.pool.Put(client)

	var stats gateway.BucketStats
	var token *string
	for {
		result, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.backend.bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return gateway.BucketStats{}, statusForErr(err), err
		}
		for _, obj := range result.Contents {
			stats.TotalSize += aws.ToInt64(obj.Size)
			stats.TotalCount++
		}
		if !aws.ToBool(result.IsTruncated) {
			break
		}
		token = result.NextContinuationToken
	}
	return stats, 200, nil
}

// statusForErr maps the S3 SDK's typed errors to the HTTP status the
// classifier expects; anything unrecognized is treated as a generic
// server-side failure rather than guessed at.
func statusForErr(err error) int {
	switch {
	case isErrorType[*s3types.NoSuchKey](err):
		return 404
	case isErrorType[*s3types.NoSuchBucket](err):
		return 404
	case isErrorType[*s3types.NotFound](err):
		return 404
	default:
		return 500
	}
}
