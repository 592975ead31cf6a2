package s3

import (
	"errors"
	"fmt"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestStatusForErr_NotFoundVariants(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"NoSuchKey", &s3types.NoSuchKey{}, 404},
		{"NoSuchBucket", &s3types.NoSuchBucket{}, 404},
		{"NotFound", &s3types.NotFound{}, 404},
		{"wrapped NoSuchKey", fmt.Errorf("get object: %w", &s3types.NoSuchKey{}), 404},
		{"unrelated error", errors.New("connection reset"), 500},
		{"nil error", nil, 500},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, statusForErr(c.err))
		})
	}
}

func TestNewGatewayClientWrapsBackend(t *testing.T) {
	backend := &Backend{bucket: "test-bucket"}
	client := NewGatewayClient(backend)

	assert.Same(t, backend, client.backend)
	assert.NotNil(t, client.multipart)
}
