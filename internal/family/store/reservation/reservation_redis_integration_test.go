//go:build integration

package reservation_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kinlink/internal/family/store/reservation"
	"kinlink/pkg/platform/sentinel"
	"kinlink/pkg/testutil/containers"
)

type RedisReservationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	res   *reservation.Redis
}

func TestRedisReservationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisReservationSuite))
}

func (s *RedisReservationSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.res = reservation.NewRedis(s.redis.Client, 2*time.Second)
}

func (s *RedisReservationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisReservationSuite) TestReserveAndRelease() {
	ctx := context.Background()

	s.Require().NoError(s.res.Reserve(ctx, "asha@gmail.com", "+919876543210"))
	s.Require().ErrorIs(s.res.Reserve(ctx, "asha@gmail.com", "+919876543210"), sentinel.ErrAlreadyUsed)

	s.res.Release(ctx, "asha@gmail.com", "+919876543210")
	s.Require().NoError(s.res.Reserve(ctx, "asha@gmail.com", "+919876543210"))
}

func (s *RedisReservationSuite) TestPartialOverlapBlocksAndRollsBack() {
	ctx := context.Background()
	s.Require().NoError(s.res.Reserve(ctx, "asha@gmail.com", "+919876543210"))

	// Same phone, different email: must fail and must not leave the new
	// email claimed.
	err := s.res.Reserve(ctx, "other@gmail.com", "+919876543210")
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	s.Require().NoError(s.res.Reserve(ctx, "other@gmail.com", "+919876543299"))
}

func (s *RedisReservationSuite) TestConcurrentReserveSinglePairWinner() {
	ctx := context.Background()
	const goroutines = 30

	var wg sync.WaitGroup
	var successes atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.res.Reserve(ctx, "asha@gmail.com", "+919876543210"); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
}

func (s *RedisReservationSuite) TestClaimExpires() {
	ctx := context.Background()
	s.Require().NoError(s.res.Reserve(ctx, "asha@gmail.com", "+919876543210"))

	time.Sleep(2500 * time.Millisecond)
	s.Require().NoError(s.res.Reserve(ctx, "asha@gmail.com", "+919876543210"))
}
