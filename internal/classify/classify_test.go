package classify

import (
	"testing"

	"github.com/gatewayfs/gatewayfs/pkg/errors"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    TransportStatus
		httpCode  int
		body      *ErrorBody
		wantKind  errors.ErrorKind
		wantRetry bool
	}{
		{"2xx success", TransportOK, 200, nil, errors.Good, false},
		{"1xx informational success", TransportOK, 100, nil, errors.Good, false},
		{"302 redirect success", TransportOK, 302, nil, errors.Good, false},
		{"304 not modified success", TransportOK, 304, nil, errors.Good, false},
		{"404 not retriable", TransportOK, 404, nil, errors.KeyNotExist, false},
		{"429 too many requests retriable", TransportOK, 429, nil, errors.UnexpectedResponse, true},
		{"504 gateway timeout retriable", TransportOK, 504, nil, errors.UnexpectedResponse, true},
		{"509 bandwidth exceeded retriable", TransportOK, 509, nil, errors.UnexpectedResponse, true},
		{"598 retriable", TransportOK, 598, nil, errors.UnexpectedResponse, true},
		{"599 retriable", TransportOK, 599, nil, errors.UnexpectedResponse, true},
		{"400 not retriable", TransportOK, 400, nil, errors.UnexpectedResponse, false},
		{"500 not retriable", TransportOK, 500, nil, errors.UnexpectedResponse, false},
		{"send error retriable", TransportSendError, 0, nil, errors.RequestSendError, true},
		{"never started retriable", TransportNeverStarted, 0, nil, errors.RequestUninitialized, true},
		{"still running not retriable", TransportStillRunning, 0, nil, errors.RequestWaiting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Classify(tt.status, tt.httpCode, tt.body)
			if outcome.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", outcome.Kind, tt.wantKind)
			}
			if outcome.Retryable != tt.wantRetry {
				t.Errorf("Retryable = %v, want %v", outcome.Retryable, tt.wantRetry)
			}
		})
	}
}

func TestClassifyUnexpectedResponseWithBody(t *testing.T) {
	t.Parallel()

	body := &ErrorBody{
		Code:      "InternalError",
		Message:   "We encountered an internal error",
		RequestID: "req-1",
		URL:       "https://example.com/bucket/key",
	}

	outcome := Classify(TransportUnexpectedResponse, 500, body)
	if outcome.Kind != errors.UnexpectedResponse {
		t.Errorf("Kind = %v, want UnexpectedResponse", outcome.Kind)
	}
	if outcome.Retryable {
		t.Error("500 with body should not be retryable by default")
	}
	if outcome.Message == "" {
		t.Error("Message should carry the remote code/request-id/url")
	}
}

func TestToGatewayError(t *testing.T) {
	t.Parallel()

	t.Run("Good outcome yields nil", func(t *testing.T) {
		if err := ToGatewayError(Outcome{Kind: errors.Good}, "key"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("failure outcome carries tag and retryable", func(t *testing.T) {
		outcome := Classify(TransportOK, 429, nil)
		err := ToGatewayError(outcome, "bucket/object.txt")
		if err == nil {
			t.Fatal("expected non-nil error")
		}
		if err.Tag != "bucket/object.txt" {
			t.Errorf("Tag = %q, want bucket/object.txt", err.Tag)
		}
		if !err.Retryable {
			t.Error("429 should be retryable")
		}
	})
}
