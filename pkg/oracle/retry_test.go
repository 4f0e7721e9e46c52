package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	answers []string
	errs    []error
	calls   int
}

func (s *scripted) Complete(ctx context.Context, system, user string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.answers) {
		return s.answers[i], nil
	}
	return "", newError(ErrUnavailable, nil, "script exhausted")
}

func recordSleeps(into *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*into = append(*into, d)
		return nil
	}
}

func TestRetry_SucceedsAfterInvalidAnswer(t *testing.T) {
	o := &scripted{answers: []string{"garbage", `{"ok":true}`}}
	var sleeps []time.Duration
	r := Retry{Sleep: recordSleeps(&sleeps)}

	n, err := r.Do(context.Background(), o, "s", "u", func(raw string) error {
		var v struct{ OK bool }
		return Decode(raw, &v)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, sleeps)
}

func TestRetry_ExhaustsWithLinearBackoff(t *testing.T) {
	o := &scripted{answers: []string{"x", "y", "z", `{}`}}
	var sleeps []time.Duration
	r := Retry{Sleep: recordSleeps(&sleeps)}

	n, err := r.Do(context.Background(), o, "s", "u", func(string) error {
		return Invalid("confidence out of range")
	})
	require.Error(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, o.calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, ErrResponseInvalid)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, sleeps)
}

func TestRetry_ConfigurationIsFatal(t *testing.T) {
	o := &scripted{errs: []error{newError(ErrConfiguration, nil, "no key")}}
	n, err := Retry{Sleep: recordSleeps(new([]time.Duration))}.Do(context.Background(), o, "s", "u", func(string) error { return nil })
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.False(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, o.calls)
}

func TestRetry_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := &scripted{errs: []error{newError(ErrUnavailable, nil, "down"), newError(ErrUnavailable, nil, "down")}}
	r := Retry{Sleep: func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}}

	n, err := r.Do(ctx, o, "s", "u", func(string) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, o.calls, "no new attempt after cancellation")
}

func TestRetry_AttemptTimeout(t *testing.T) {
	var sawDeadline bool
	o := oracleFunc(func(ctx context.Context, _, _ string) (string, error) {
		_, sawDeadline = ctx.Deadline()
		return `{}`, nil
	})
	_, err := Retry{AttemptTimeout: time.Second}.Do(context.Background(), o, "s", "u", func(string) error { return nil })
	require.NoError(t, err)
	assert.True(t, sawDeadline)
}

type oracleFunc func(ctx context.Context, system, user string) (string, error)

func (f oracleFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}
