package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_DoublesUpToCap(t *testing.T) {
	assert.Equal(t, retryBackoffBase+retryJitter/2, backoffDelay(0))
	assert.Equal(t, 2*retryBackoffBase+retryJitter/2, backoffDelay(1))
	assert.Equal(t, 4*retryBackoffBase+retryJitter/2, backoffDelay(2))
}

func TestBackoffDelay_CapsAtMax(t *testing.T) {
	got := backoffDelay(10)
	assert.Equal(t, retryBackoffMax+retryJitter/2, got)
}

func TestContextExhaustedError_WrapsCause(t *testing.T) {
	cause := assertTestError("boom")
	err := &contextExhaustedError{cause: cause}
	assert.Contains(t, err.Error(), "boom")
	assert.ErrorIs(t, err, cause)
}

type testErr string

func (e testErr) Error() string { return string(e) }

func assertTestError(msg string) error { return testErr(msg) }
