package repository_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TGVoiceBot/internal/models"
	"github.com/digkill/TGVoiceBot/internal/repository"
	"github.com/digkill/TGVoiceBot/internal/testutil"
)

func newUserRepo(t *testing.T) *repository.UserRepository {
	t.Helper()
	return repository.NewUserRepository(testutil.NewSQLite(t))
}

func TestCreateSeedsCredits(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, 42)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Create(ctx, 42, "alice", 60))

	exists, err = repo.Exists(ctx, 42)
	require.NoError(t, err)
	assert.True(t, exists)

	user, err := repo.FindByChatID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, 60, user.Credits)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, models.StatusAwaitingAudio, user.Status)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestCreateRejectsDuplicateChatID(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, 7, "", 10))
	require.Error(t, repo.Create(ctx, 7, "", 10))
}

func TestFindByChatIDMissing(t *testing.T) {
	t.Parallel()

	user, err := newUserRepo(t).FindByChatID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRefsIncrementsAccumulate(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 1, "", 0))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.AddRefs(ctx, 1, 1)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	user, err := repo.FindByChatID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, n, user.Refs)
}

func TestAddCreditsClampsAtZero(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 1, "", 10))

	ok, err := repo.AddCredits(ctx, 1, -25)
	require.NoError(t, err)
	assert.True(t, ok)

	user, err := repo.FindByChatID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, user.Credits)

	ok, err = repo.AddCredits(ctx, 999, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreditReferral(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 10, "", 60))

	ok, err := repo.CreditReferral(ctx, 10, 30)
	require.NoError(t, err)
	assert.True(t, ok)

	user, err := repo.FindByChatID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, user.Refs)
	assert.Equal(t, 90, user.Credits)

	ok, err = repo.CreditReferral(ctx, 11, 30)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreditReferralSharesRefsCounter(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 20, "", 0))

	ok, err := repo.AddRefs(ctx, 20, 2)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.CreditReferral(ctx, 20, 30)
	require.NoError(t, err)
	require.True(t, ok)

	user, err := repo.FindByChatID(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, user.Refs)
	assert.Equal(t, 30, user.Credits)
}

func TestSelectionStatusTransitions(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 5, "", 100))

	// No audio yet: a model button must not apply.
	ok, err := repo.SetSelectedModel(ctx, 5, "morgan")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.SetLastAudio(ctx, 5, "https://cdn/a.ogg", 40)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetSelectedModel(ctx, 5, "morgan")
	require.NoError(t, err)
	assert.True(t, ok)

	// Changing one's mind while choosing pitch is allowed.
	ok, err = repo.SetSelectedModel(ctx, 5, "freeman")
	require.NoError(t, err)
	assert.True(t, ok)

	user, err := repo.FindByChatID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPitch, user.Status)
	assert.Equal(t, "freeman", user.ModelName)
	assert.Equal(t, "https://cdn/a.ogg", user.Audio)
	assert.Equal(t, 40, user.Duration)

	ok, err = repo.DebitForDispatch(ctx, 5, user.Audio, user.Duration)
	require.NoError(t, err)
	assert.True(t, ok)

	// Replaying the pitch press after dispatch is a no-op.
	ok, err = repo.DebitForDispatch(ctx, 5, user.Audio, user.Duration)
	require.NoError(t, err)
	assert.False(t, ok)

	user, err = repo.FindByChatID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 60, user.Credits)
	assert.Equal(t, models.StatusDispatched, user.Status)

	ok, err = repo.RefundDispatch(ctx, 5, 40)
	require.NoError(t, err)
	assert.True(t, ok)

	user, err = repo.FindByChatID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 100, user.Credits)
	assert.Equal(t, models.StatusAwaitingPitch, user.Status)

	// A new upload clears the model and restarts at model choice.
	ok, err = repo.SetLastAudio(ctx, 5, "https://cdn/b.ogg", 12)
	require.NoError(t, err)
	assert.True(t, ok)
	user, err = repo.FindByChatID(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, user.ModelName)
	assert.Equal(t, models.StatusAwaitingModel, user.Status)
}

func TestDebitForDispatchRequiresFunds(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 3, "", 50))
	_, err := repo.SetLastAudio(ctx, 3, "https://cdn/long.ogg", 60)
	require.NoError(t, err)
	_, err = repo.SetSelectedModel(ctx, 3, "morgan")
	require.NoError(t, err)

	ok, err := repo.DebitForDispatch(ctx, 3, "https://cdn/long.ogg", 60)
	require.NoError(t, err)
	assert.False(t, ok)

	user, err := repo.FindByChatID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 50, user.Credits)
	assert.Equal(t, models.StatusAwaitingPitch, user.Status)
}

func TestDebitForDispatchRejectsReplacedAudio(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, 3, "", 100))
	_, err := repo.SetLastAudio(ctx, 3, "https://cdn/new.ogg", 10)
	require.NoError(t, err)
	_, err = repo.SetSelectedModel(ctx, 3, "morgan")
	require.NoError(t, err)

	ok, err := repo.DebitForDispatch(ctx, 3, "https://cdn/old.ogg", 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListChatIDs(t *testing.T) {
	t.Parallel()

	repo := newUserRepo(t)
	ctx := context.Background()
	for _, id := range []int64{3, 1, 2} {
		require.NoError(t, repo.Create(ctx, id, "", 0))
	}

	ids, err := repo.ListChatIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)
}
