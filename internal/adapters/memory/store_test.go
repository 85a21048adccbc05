package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
)

func TestStore_HistoryIsolation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	got, err := s.GetHistory(ctx, "u")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AppendHistory(ctx, "u", domain.PlaylistRecord{PlaylistURL: fmt.Sprintf("url-%d", i)})
		}(i)
	}
	wg.Wait()

	got, err = s.GetHistory(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.Equal(t, "u", got[0].OwnerID)

	got[0].PlaylistURL = "mutated"
	again, _ := s.GetHistory(ctx, "u")
	assert.NotEqual(t, "mutated", again[0].PlaylistURL)
}

func TestStore_SessionsAreCapped(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	turns := make([]domain.Turn, 25)
	for i := range turns {
		turns[i] = domain.Turn{Role: domain.RoleUser, Content: fmt.Sprintf("m%d", i)}
	}
	require.NoError(t, s.SaveTurns(ctx, "s", turns))

	got, err := s.GetTurns(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, domain.MaxConversationMessages)
	assert.Equal(t, "m5", got[0].Content)

	missing, err := s.GetTurns(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
