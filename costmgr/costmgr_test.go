package costmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/kart-io/forecastsim/errors"
)

func TestCheckAndAdd_NoScopeInContextIsANoOp(t *testing.T) {
	err := CheckAndAdd(context.Background(), 5)
	require.NoError(t, err)
}

func TestCheckAndAdd_AddsCostAgainstScope(t *testing.T) {
	ctx, scope := Enter(context.Background(), 10, nil)

	require.NoError(t, CheckAndAdd(ctx, 2.5))
	require.NoError(t, CheckAndAdd(ctx, 3))
	assert.Equal(t, 5.5, scope.Spent())
}

func TestCheckAndAdd_ExceedingBudgetAbortsAndDoesNotRecord(t *testing.T) {
	ctx, scope := Enter(context.Background(), 1, nil)

	err := CheckAndAdd(ctx, 5)
	require.Error(t, err)
	assert.Equal(t, simerrors.CodeCostLimitExceeded, simerrors.Code(err))
	assert.Equal(t, 0.0, scope.Spent())
}

func TestCheckAndAdd_ChargesEveryEnclosingScope(t *testing.T) {
	outerCtx, outer := Enter(context.Background(), 100, nil)
	innerCtx, inner := Enter(outerCtx, 100, nil)

	require.NoError(t, CheckAndAdd(innerCtx, 4))
	assert.Equal(t, 4.0, inner.Spent())
	assert.Equal(t, 4.0, outer.Spent())
}

func TestCheckAndAdd_EnclosingBudgetStillAbortsEvenWhenInnerHasRoom(t *testing.T) {
	outerCtx, outer := Enter(context.Background(), 3, nil)
	innerCtx, inner := Enter(outerCtx, 1000, nil)

	err := CheckAndAdd(innerCtx, 4)
	require.Error(t, err)
	assert.Equal(t, 0.0, inner.Spent())
	assert.Equal(t, 0.0, outer.Spent())
}

func TestClose_OverBudgetReportsError(t *testing.T) {
	_, scope := Enter(context.Background(), 1, nil)
	scope.spent = 2 // simulate cost recorded outside the CheckAndAdd guard

	err := scope.Close()
	require.Error(t, err)
	assert.Equal(t, simerrors.CodeCostLimitExceeded, simerrors.Code(err))
}

func TestClose_IsIdempotent(t *testing.T) {
	_, scope := Enter(context.Background(), 10, nil)
	require.NoError(t, scope.Close())
	require.NoError(t, scope.Close())
}

func TestWithRateLimit_AllowsCallsWithinBurst(t *testing.T) {
	ctx, _ := Enter(context.Background(), 0, nil, WithRateLimit(1, 2))

	require.NoError(t, CheckAndAdd(ctx, 0))
	require.NoError(t, CheckAndAdd(ctx, 0))
}

func TestWithRateLimit_BlocksUntilContextDeadlineWhenTokenExhausted(t *testing.T) {
	ctx, _ := Enter(context.Background(), 0, nil, WithRateLimit(1, 1)) // 1 call/sec, burst 1
	require.NoError(t, CheckAndAdd(ctx, 0))                            // consumes the burst token

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	err := CheckAndAdd(timeoutCtx, 0)
	require.Error(t, err)
	assert.Equal(t, simerrors.CodeCostLimitExceeded, simerrors.Code(err))
}

func TestWithRateLimit_AlreadyCanceledContextAbortsImmediately(t *testing.T) {
	ctx, _ := Enter(context.Background(), 0, nil, WithRateLimit(1, 1))
	require.NoError(t, CheckAndAdd(ctx, 0))

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	err := CheckAndAdd(cancelCtx, 0)
	require.Error(t, err)
	assert.Equal(t, simerrors.CodeCostLimitExceeded, simerrors.Code(err))
}
