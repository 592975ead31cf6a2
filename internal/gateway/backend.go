package gateway

import (
	"context"
	"time"
)

// PutInput carries the optional fields a PutObject call may need beyond
// the key and body: a MIME type, the declared content length, and, for a
// server-side move, the copy-source header produced by
// pathtranslate.Translator.MoveSourceHeader. StorageClass, when set,
// requests a specific S3 storage tier for a server-side copy — used by
// SetStorageTier to retag an object in place without a body transfer.
type PutInput struct {
	MimeType     string
	Length       int64
	Body         []byte
	MoveSource   string
	StorageClass string
}

// ListPage is one page of a ListObjects response: the keys and common
// prefixes (implicit subdirectories) found under the requested prefix,
// plus a marker to resume listing if the page was truncated.
type ListPage struct {
	Keys           []string
	CommonPrefixes []string
	NextMarker     string
	Truncated      bool
}

// BucketStats mirrors the backend's get_bucket_statistics response, used
// to populate Statvfs.
type BucketStats struct {
	TotalSize  int64
	TotalCount int64
}

// CompletedPart identifies one finished part of a multipart upload by
// part number and the ETag the backend returned for it.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// BackendClient is the object-store client the gateway composes against.
// The gateway never constructs one — it is dependency-injected at
// composition time (see internal/adapter) so the same operations run
// against any backend that implements this surface. Every method reports
// the raw HTTP status alongside any transport error so the response
// classifier can interpret partial failures (a non-2xx status with a nil
// error) the same way it interprets a transport-level send failure.
type BackendClient interface {
	HeadBucket(ctx context.Context) (httpStatus int, err error)

	HeadObject(ctx context.Context, key string, ifModifiedSince *time.Time) (httpStatus int, meta map[string]string, err error)

	GetObject(ctx context.Context, key string, rangeStart, rangeLen int64) (httpStatus int, body []byte, etag string, err error)

	PutObject(ctx context.Context, key string, input PutInput) (httpStatus int, err error)

	DeleteObject(ctx context.Context, key string) (httpStatus int, err error)

	ListObjects(ctx context.Context, prefix, marker string, limit int) (page ListPage, httpStatus int, err error)

	InitiateMultipart(ctx context.Context, key string, input PutInput) (uploadID string, httpStatus int, err error)

	UploadPart(ctx context.Context, key, uploadID string, partNo int, body []byte) (etag string, httpStatus int, err error)

	CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) (httpStatus int, err error)

	AbortMultipart(ctx context.Context, key, uploadID string) (httpStatus int, err error)

	GetBucketStatistics(ctx context.Context) (stats BucketStats, httpStatus int, err error)
}
