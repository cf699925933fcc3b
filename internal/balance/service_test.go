package balance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	owes   map[int64]int64
	isOwed map[int64]int64
}

func (s *fakeSource) BalanceOf(ctx context.Context, userID int64) (int64, int64, error) {
	return s.owes[userID], s.isOwed[userID], nil
}

func TestService_Balance(t *testing.T) {
	source := &fakeSource{
		owes:   map[int64]int64{2: 1500},
		isOwed: map[int64]int64{2: 400},
	}
	svc := NewService(source)

	bal, err := svc.Balance(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), bal.UserID)
	assert.Equal(t, int64(1500), bal.OwesCents)
	assert.Equal(t, int64(400), bal.IsOwedCents)
	assert.Equal(t, int64(-1100), bal.NetCents)
}

func TestService_Balance_NoActivity(t *testing.T) {
	svc := NewService(&fakeSource{})

	bal, err := svc.Balance(context.Background(), 7)
	require.NoError(t, err)

	assert.Zero(t, bal.OwesCents)
	assert.Zero(t, bal.IsOwedCents)
	assert.Zero(t, bal.NetCents)
}
