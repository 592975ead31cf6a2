package fuse

import (
	stderr "errors"
	"syscall"

	"github.com/gatewayfs/gatewayfs/pkg/errors"
)

// errnoFor maps a gateway error's Kind onto the syscall.Errno the FUSE
// binding must return. The mapping is total: every ErrorKind in the
// closed set resolves to something, and an error that isn't a
// *errors.GatewayError at all (a context cancellation, say) falls back
// to EIO rather than panicking on a failed type assertion.
func errnoFor(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var gwErr *errors.GatewayError
	if !stderr.As(err, &gwErr) {
		return syscall.EIO
	}

	switch gwErr.Kind {
	case errors.Good:
		return 0
	case errors.KeyNotExist:
		return syscall.ENOENT
	case errors.ParameterMissing, errors.SdkNoRequiredParameter, errors.SdkConfigureFileInvalid:
		return syscall.EINVAL
	case errors.RequestUninitialized, errors.RequestWaiting, errors.RequestDeferred:
		return syscall.EAGAIN
	case errors.RequestExpired:
		return syscall.ETIMEDOUT
	case errors.RequestSendError:
		return syscall.EIO
	case errors.NoSuchUpload, errors.NoSuchMultipartUpload, errors.NoSuchMultipartDownload,
		errors.NoSuchListMultipart, errors.NoSuchListMultipartUploads, errors.NoSuchListObjects:
		return syscall.ENOENT
	case errors.UnexpectedResponse, errors.Unknown:
		return syscall.EIO
	default:
		return syscall.EIO
	}
}

// isKeyNotExist reports whether err is a gateway KeyNotExist error — the
// signal Lookup uses to fall back from a file probe to a directory probe.
func isKeyNotExist(err error) bool {
	var gwErr *errors.GatewayError
	return stderr.As(err, &gwErr) && gwErr.Kind == errors.KeyNotExist
}
