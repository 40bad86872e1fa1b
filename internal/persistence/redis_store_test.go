package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

const testPrefix = "procflow:test:"

type RedisBackendTestSuite struct {
	suite.Suite
	server  *miniredis.Miniredis
	client  *redis.Client
	backend *RedisBackend
	ctx     context.Context
}

func TestRedisBackendTestSuite(t *testing.T) {
	suite.Run(t, new(RedisBackendTestSuite))
}

func (s *RedisBackendTestSuite) SetupTest() {
	s.server = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.server.Addr()})
	s.backend = NewRedisBackend(s.client, WithPrefix(testPrefix))
	s.ctx = context.Background()
}

func (s *RedisBackendTestSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *RedisBackendTestSuite) TestSaveLoadRoundTrip() {
	err := s.backend.SaveUserRecord(s.ctx, "user-1", sampleRecord())
	s.Require().NoError(err)

	got, err := s.backend.LoadUserRecord(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Contains(got, "tax-guide")

	service := got["tax-guide"].(map[string]any)
	s.Equal("in_progress", service["status"])
}

func (s *RedisBackendTestSuite) TestLoadMissingUserReturnsEmptyRecord() {
	got, err := s.backend.LoadUserRecord(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *RedisBackendTestSuite) TestRemoveUserRecord() {
	removed, err := s.backend.RemoveUserRecord(s.ctx, "user-1")
	s.Require().NoError(err)
	s.False(removed, "expected removed=false for unknown user")

	s.Require().NoError(s.backend.SaveUserRecord(s.ctx, "user-1", sampleRecord()))

	removed, err = s.backend.RemoveUserRecord(s.ctx, "user-1")
	s.Require().NoError(err)
	s.True(removed)

	got, err := s.backend.LoadUserRecord(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *RedisBackendTestSuite) TestTTLExpiresWholeRecord() {
	backend := NewRedisBackend(s.client, WithPrefix(testPrefix), WithTTL(time.Minute))
	s.Require().NoError(backend.SaveUserRecord(s.ctx, "user-ttl", sampleRecord()))

	ttl := s.client.TTL(s.ctx, testPrefix+"user:user-ttl").Val()
	s.Greater(ttl, time.Duration(0), "expected a positive TTL on the record key")

	s.server.FastForward(2 * time.Minute)

	got, err := backend.LoadUserRecord(s.ctx, "user-ttl")
	s.Require().NoError(err)
	s.Empty(got, "expected record to expire as a whole")
}

func (s *RedisBackendTestSuite) TestListUserIDs() {
	for _, userID := range []string{"alice", "bob"} {
		s.Require().NoError(s.backend.SaveUserRecord(s.ctx, userID, sampleRecord()))
	}

	ids, err := s.backend.ListUserIDs(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"alice", "bob"}, ids)
}

func (s *RedisBackendTestSuite) TestHealthCheck() {
	s.True(s.backend.HealthCheck(s.ctx))

	s.server.Close()
	s.False(s.backend.HealthCheck(s.ctx))
}
