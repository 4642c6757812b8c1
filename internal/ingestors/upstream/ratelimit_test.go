package upstream

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{StatusCode: status, Header: h}
}

func TestRateLimiter_UpdateFromResponse(t *testing.T) {
	r := NewRateLimiter(0)
	assert.Equal(t, -1, r.Remaining())

	reset := time.Now().Add(time.Minute).Unix()
	r.UpdateFromResponse(response(http.StatusOK, map[string]string{
		HeaderRateRemaining: "42",
		HeaderRateLimit:     "100",
		HeaderRateReset:     strconv.FormatInt(reset, 10),
	}))
	assert.Equal(t, 42, r.Remaining())
}

func TestRateLimiter_CheckRateLimit(t *testing.T) {
	r := NewRateLimiter(0)

	assert.NoError(t, r.CheckRateLimit(response(http.StatusOK, nil)))
	assert.NoError(t, r.CheckRateLimit(response(http.StatusForbidden, nil)))

	err := r.CheckRateLimit(response(http.StatusTooManyRequests, map[string]string{HeaderRetryAfter: "30"}))
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.True(t, IsRetryable(err))

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), rl.ResetAt, 2*time.Second)

	err = r.CheckRateLimit(response(http.StatusForbidden, map[string]string{HeaderRateRemaining: "0"}))
	assert.True(t, IsRateLimited(err))
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	r := NewRateLimiter(1000)
	r.UpdateFromResponse(response(http.StatusOK, map[string]string{
		HeaderRateRemaining: "1",
		HeaderRateReset:     strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}
