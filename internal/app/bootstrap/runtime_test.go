package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/session"
	"github.com/wolfman30/clinic-intake/internal/support"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	cfg := memoryConfig()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))
}

func TestBuildRedisClientUnreachableReturnsNil(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))
}

func TestBuildSessionStoreMemory(t *testing.T) {
	store, closeFn, err := BuildSessionStore(context.Background(), memoryConfig(), logging.Discard())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &session.MemoryStore{}, store)
}

func TestBuildSessionStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.SessionBackend = "redis"
	cfg.RedisAddr = mr.Addr()

	store, closeFn, err := BuildSessionStore(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer closeFn()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, session.New(patientPhone, "Asha", patients.Status{}, time.Now())))
	got, err := store.Get(ctx, patientPhone)
	require.NoError(t, err)
	assert.Equal(t, patientPhone, got.UserID)
	assert.Equal(t, time.Hour, mr.TTL("clinic:session:"+patientPhone))
}

func TestBuildSessionStoreRedisUnreachable(t *testing.T) {
	cfg := memoryConfig()
	cfg.SessionBackend = "redis"
	cfg.RedisAddr = "127.0.0.1:1"
	_, _, err := BuildSessionStore(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "unreachable")
}

func TestBuildSessionStoreUnknown(t *testing.T) {
	cfg := memoryConfig()
	cfg.SessionBackend = "etcd"
	_, _, err := BuildSessionStore(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "unknown session backend")
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, ConnectPostgresPool(context.Background(), "", logging.Discard()))
}

func TestBuildPatientStore(t *testing.T) {
	tests := []struct {
		name    string
		store   string
		wantErr string
	}{
		{name: "memory has no durable copy", store: "memory"},
		{name: "postgres needs a url", store: "postgres", wantErr: "DATABASE_URL"},
		{name: "mongo needs a uri", store: "mongo", wantErr: "MONGODB_URI"},
		{name: "unknown", store: "dynamo", wantErr: "unknown patient store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			cfg.PatientStore = tt.store
			repo, closeFn, err := BuildPatientStore(context.Background(), cfg, logging.Discard())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			closeFn()
			assert.Nil(t, repo)
		})
	}
}

func TestBuildEscalationStoreDefaultsToMemory(t *testing.T) {
	store, closeFn, err := BuildEscalationStore(context.Background(), memoryConfig(), logging.Discard())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &support.MemoryStore{}, store)
}
