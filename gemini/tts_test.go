package gemini

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsQuotaErr(t *testing.T) {
	assert.True(t, isQuotaErr(errors.New("rpc error: code = 429 ResourceExhausted")))
	assert.True(t, isQuotaErr(errors.New("RESOURCE_EXHAUSTED: rate limited")))
	assert.True(t, isQuotaErr(errors.New("Quota exceeded for model")))
	assert.False(t, isQuotaErr(errors.New("connection refused")))
	assert.False(t, isQuotaErr(errors.New("invalid argument")))
}
