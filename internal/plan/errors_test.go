package plan

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_Transient(t *testing.T) {
	assert.True(t, ErrCodeStoreUnavailable.Transient())
	assert.True(t, ErrCodeLockTimeout.Transient())
	assert.False(t, ErrCodeEntryExpired.Transient())
	assert.False(t, ErrCodeInvalidTransition.Transient())
	assert.False(t, ErrCodeVerificationFailure.Transient())
}

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewLockTimeout("plan:p1", time.Second))
	assert.Equal(t, ErrCodeLockTimeout, CodeOf(err))
	assert.True(t, IsTransient(err))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.False(t, HasCode(nil, ErrCodeLockTimeout))
}

func TestWithLocation_FillsOnlyEmptyFields(t *testing.T) {
	base := NewUnknownFood("111", "f9")
	err := WithLocation(base, "plan-1", "222", "alice")

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "plan-1", pe.PlanID)
	assert.Equal(t, DayKey("111"), pe.Day)
	assert.Equal(t, "alice", pe.MemberID)
	assert.Empty(t, base.PlanID, "original must not be modified")
	assert.Contains(t, err.Error(), "plan=plan-1, day=111, member=alice")
}

func TestVerificationFailure_Unwraps(t *testing.T) {
	cause := errors.New("sink down")
	err := NewVerificationFailure("job-1", "plan-1", cause)
	assert.True(t, IsVerificationFailure(err))
	assert.ErrorIs(t, err, cause)
}
