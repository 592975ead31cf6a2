// Package classify maps a backend response (transport outcome, HTTP status,
// optional structured error body) onto the gateway's closed error-kind
// vocabulary.
package classify

import (
	"fmt"

	"github.com/gatewayfs/gatewayfs/pkg/errors"
)

// TransportStatus is the outcome of the underlying HTTP round trip, prior
// to any interpretation of the response body.
type TransportStatus int

const (
	// TransportOK means the request was sent and a response was received.
	TransportOK TransportStatus = iota
	// TransportSendError means the request could not be sent at all
	// (DNS, dial, TLS handshake failure).
	TransportSendError
	// TransportUnexpectedResponse means a response was received but could
	// not be parsed into the expected shape.
	TransportUnexpectedResponse
	// TransportNeverStarted means the executor's deadline elapsed before
	// the task was dequeued by a worker.
	TransportNeverStarted
	// TransportStillRunning means the executor's deadline elapsed while
	// the task was already executing on a worker.
	TransportStillRunning
)

// ErrorBody is the optional structured error payload a backend may return
// alongside a non-2xx status (S3's XML error document, decoded).
type ErrorBody struct {
	Code      string
	Message   string
	RequestID string
	URL       string
}

// Outcome is the classifier's result: the kind to report, whether the
// retry driver should retry it, and a human-readable message.
type Outcome struct {
	Kind      errors.ErrorKind
	Retryable bool
	Message   string
}

// Classify implements the response classifier (see the response
// classifier component design): input is the transport status, the HTTP
// response code (meaningless unless status is TransportOK), and an
// optional structured error body; output is an Outcome.
func Classify(status TransportStatus, httpCode int, body *ErrorBody) Outcome {
	switch status {
	case TransportSendError:
		return Outcome{Kind: errors.RequestSendError, Retryable: true, Message: "failed to send request"}
	case TransportNeverStarted:
		return Outcome{Kind: errors.RequestUninitialized, Retryable: true, Message: "request never started before deadline"}
	case TransportStillRunning:
		return Outcome{Kind: errors.RequestWaiting, Retryable: false, Message: "request still running at deadline"}
	case TransportUnexpectedResponse:
		return classifyUnexpected(httpCode, body)
	}

	if isSuccess(httpCode) {
		return Outcome{Kind: errors.Good, Retryable: false, Message: ""}
	}

	if httpCode == 404 {
		return Outcome{Kind: errors.KeyNotExist, Retryable: false, Message: "object does not exist"}
	}

	if isRetriableStatus(httpCode) {
		return Outcome{
			Kind:      errors.UnexpectedResponse,
			Retryable: true,
			Message:   fmt.Sprintf("retriable response status %d", httpCode),
		}
	}

	return classifyUnexpected(httpCode, body)
}

func classifyUnexpected(httpCode int, body *ErrorBody) Outcome {
	if body != nil {
		return Outcome{
			Kind:      errors.UnexpectedResponse,
			Retryable: isRetriableStatus(httpCode),
			Message:   fmt.Sprintf("remote error %s (request-id=%s, url=%s): %s", body.Code, body.RequestID, body.URL, body.Message),
		}
	}
	return Outcome{
		Kind:      errors.UnexpectedResponse,
		Retryable: isRetriableStatus(httpCode),
		Message:   fmt.Sprintf("unexpected response status %d", httpCode),
	}
}

func isSuccess(httpCode int) bool {
	switch {
	case httpCode >= 100 && httpCode < 200:
		return true
	case httpCode >= 200 && httpCode < 300:
		return true
	case httpCode == 302, httpCode == 304:
		return true
	default:
		return false
	}
}

var retriableStatuses = map[int]bool{
	100: true,
	102: true,
	429: true,
	504: true,
	509: true,
	598: true,
	599: true,
}

func isRetriableStatus(httpCode int) bool {
	return retriableStatuses[httpCode]
}

// ToGatewayError converts a classifier Outcome into a *errors.GatewayError,
// tagging it with the object key or request identifier supplied by the
// caller.
func ToGatewayError(outcome Outcome, tag string) *errors.GatewayError {
	if outcome.Kind == errors.Good {
		return nil
	}
	return errors.NewError(outcome.Kind, outcome.Message).
		WithTag(tag).
		WithRetryable(outcome.Retryable)
}
