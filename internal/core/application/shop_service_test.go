package application_test

import (
	"errors"
	"testing"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestShopTasks(t *testing.T) {
	t.Run("approve by owner", func(t *testing.T) {
		env := newTestEnv(t)

		task, err := env.shops.CreateStatusTask(ctx, testShopId, domain.ShopStatusInactive)
		require.NoError(t, err)
		require.Equal(t, domain.DelegateTaskOpened, task.Status)

		sig := env.signShop(env.codec().ShopAccountMessage(testShopId, env.owner.address), env.owner)
		done, err := env.shops.ApproveStatusTask(ctx, task.ID, true, sig)
		require.NoError(t, err)
		require.Equal(t, domain.DelegateTaskCompleted, done.Status)
		require.NotEqual(t, common.Hash{}, done.TxHash)

		_, err = env.shops.ApproveStatusTask(ctx, task.ID, true, sig)
		require.ErrorIs(t, err, domain.ErrAlreadyDecided)
	})

	t.Run("deny", func(t *testing.T) {
		env := newTestEnv(t)

		task, err := env.shops.CreateUpdateTask(ctx, testShopId, "Tea Room", "krw")
		require.NoError(t, err)

		sig := env.signShop(env.codec().ShopAccountMessage(testShopId, env.owner.address), env.owner)
		done, err := env.shops.ApproveUpdateTask(ctx, task.ID, false, sig)
		require.NoError(t, err)
		require.Equal(t, domain.DelegateTaskFailed, done.Status)
		require.Zero(t, env.chain.Calls("UpdateShop"))
	})

	t.Run("wrong kind", func(t *testing.T) {
		env := newTestEnv(t)

		task, err := env.shops.CreateUpdateTask(ctx, testShopId, "Tea Room", "krw")
		require.NoError(t, err)

		sig := env.signShop(env.codec().ShopAccountMessage(testShopId, env.owner.address), env.owner)
		_, err = env.shops.ApproveStatusTask(ctx, task.ID, true, sig)
		require.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("attempts", func(t *testing.T) {
		env := newTestEnv(t)
		env.chain.Fail("UpdateShop", errors.New("execution reverted"))

		task, err := env.shops.CreateUpdateTask(ctx, testShopId, "Tea Room", "krw")
		require.NoError(t, err)

		for i := 0; i < testConfig.TaskMaxAttempts; i++ {
			sig := env.signShop(env.codec().ShopAccountMessage(testShopId, env.owner.address), env.owner)
			_, err = env.shops.ApproveUpdateTask(ctx, task.ID, true, sig)
			require.ErrorIs(t, err, domain.ErrChain)
		}

		task, err = env.shops.GetTask(ctx, task.ID)
		require.NoError(t, err)
		require.Equal(t, domain.DelegateTaskFailed, task.Status)
		require.Equal(t, testConfig.TaskMaxAttempts, task.Attempts)
	})

	t.Run("invalid input", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.shops.CreateUpdateTask(ctx, testShopId, "  ", "krw")
		require.ErrorIs(t, err, domain.ErrValidation)

		_, err = env.shops.CreateStatusTask(ctx, testShopId, domain.ShopStatusInvalid)
		require.ErrorIs(t, err, domain.ErrValidation)

		_, err = env.shops.CreateStatusTask(ctx, common.HexToHash("0x0dead"), domain.ShopStatusActive)
		require.ErrorIs(t, err, domain.ErrShopNotFound)

		_, err = env.shops.GetTask(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrTaskNotFound)
	})
}
