package cache

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStores(t *testing.T) {
	badgerStore, err := OpenBadgerStore("", zaptest.NewLogger(t))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"badger": badgerStore,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			t.Cleanup(func() { _ = store.Close() })

			_, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "k", []byte("v1"), time.Minute))
			require.NoError(t, store.Set(ctx, "k", []byte("v2"), time.Minute))
			got, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, store.Health(ctx))
			require.NoError(t, store.Flush(ctx))
			_, ok, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCodec(t *testing.T) {
	cdc, err := newCodec(64)
	require.NoError(t, err)
	defer cdc.close()

	small := &Envelope{Result: json.RawMessage(`1`), CacheTimestamp: 5, CacheSeconds: 10}
	value, err := cdc.encode(small)
	require.NoError(t, err)
	assert.Equal(t, formatJSON, value[0])
	back, err := cdc.decode(value)
	require.NoError(t, err)
	assert.Equal(t, small, back)

	large := &Envelope{Result: json.RawMessage(`"` + strings.Repeat("a", 1024) + `"`), CacheTimestamp: 5, CacheSeconds: 10}
	value, err = cdc.encode(large)
	require.NoError(t, err)
	assert.Equal(t, formatZstd, value[0])
	assert.Less(t, len(value), 1024)
	back, err = cdc.decode(value)
	require.NoError(t, err)
	assert.Equal(t, large, back)

	_, err = cdc.decode([]byte("x{}"))
	require.Error(t, err)
}

func TestEnvelopeWireFormat(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{
			name: "success",
			env:  Envelope{Result: json.RawMessage(`{"data":[]}`), CacheTimestamp: 100, CacheSeconds: 108000},
			want: `{"result":{"data":[]},"cacheTimestamp":100,"cacheSeconds":108000}`,
		},
		{
			name: "success without timestamp",
			env:  Envelope{},
			want: `{"result":null,"cacheSeconds":0}`,
		},
		{
			name: "recoverable failure",
			env:  Envelope{Error: "bad input", Status: 400, CacheTimestamp: 100, CacheSeconds: 15},
			want: `{"error":"bad input","status":400,"cacheTimestamp":100,"cacheSeconds":15}`,
		},
		{
			name: "unrecoverable failure",
			env:  Envelope{Error: "rpc down"},
			want: `{"error":"rpc down","cacheTimestamp":0,"cacheSeconds":0}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.env)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}
