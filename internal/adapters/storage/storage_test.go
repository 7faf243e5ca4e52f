package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facebook-action/internal/core/ports"
)

func TestBoltStore_SaveLoadAndPublicURL(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "files.db"), "https://agent.example/files/")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save("fb/abcdefghij.png", []byte("png-bytes")))

	data, err := store.Load(context.Background(), "fb/abcdefghij.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "https://agent.example/files/fb/abcdefghij.png", store.PublicURL("fb/abcdefghij.png"))
}

func TestBoltStore_SaveOverwrites(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "files.db"), "http://localhost/files")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save("fb/a.txt", []byte("one")))
	require.NoError(t, store.Save("fb/a.txt", []byte("two")))

	data, err := store.Load(context.Background(), "fb/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestBoltStore_MissingFile(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "files.db"), "http://localhost/files")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(context.Background(), "fb/missing.png")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRedisStore_PublicURLAndKey(t *testing.T) {
	// No server is contacted: only pure helpers are exercised
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "http://localhost:8080/files/", 0)

	assert.Equal(t, "http://localhost:8080/files/fb/x.mp4", store.PublicURL("fb/x.mp4"))
	assert.Equal(t, "file:fb/x.mp4", buildFileKey("/fb/x.mp4"))
}

func newMiniRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "http://localhost:8080/files", ttl), mr
}

func TestRedisStore_SaveLoadWithTTL(t *testing.T) {
	store, mr := newMiniRedisStore(t, time.Hour)

	require.NoError(t, store.Save("fb/abcdefghij.jpg", []byte("jpeg-bytes")))

	data, err := store.Load(context.Background(), "fb/abcdefghij.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, time.Hour, mr.TTL("file:fb/abcdefghij.jpg"))
}

func TestRedisStore_ExpiredFileIsNotFound(t *testing.T) {
	store, mr := newMiniRedisStore(t, time.Minute)

	require.NoError(t, store.Save("fb/a.txt", []byte("x")))
	mr.FastForward(2 * time.Minute)

	_, err := store.Load(context.Background(), "fb/a.txt")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRedisStore_SaveFailsWhenServerDown(t *testing.T) {
	store, mr := newMiniRedisStore(t, 0)
	mr.Close()

	err := store.Save("fb/a.txt", []byte("x"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "save file fb/a.txt")

	_, err = store.Load(context.Background(), "fb/a.txt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrNotFound)
}
