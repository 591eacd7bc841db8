package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/smmstore/internal/httpclient"
	"github.com/andymarkow/smmstore/internal/logger"
	"github.com/andymarkow/smmstore/internal/storage/inmemory"
	"github.com/andymarkow/smmstore/internal/vendor"
)

func newTestSyncer(t *testing.T, handler http.HandlerFunc) (*Syncer, *inmemory.Storage) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := inmemory.NewStorage()

	vendorClient := vendor.New(
		vendor.WithAPIKey("test-key"),
		vendor.WithClient(httpclient.New(
			httpclient.WithBaseURL(srv.URL),
			httpclient.WithRetryCount(0),
		)),
	)

	syncer := NewSyncer(store, vendorClient,
		WithLogger(logger.NewLogger(logger.WithOutput(io.Discard))),
	)

	return syncer, store
}

func TestSyncSkipsInvalidEntries(t *testing.T) {
	syncer, store := newTestSyncer(t, func(w http.ResponseWriter, r *http.Request) {
		// The second row has inverted quantity bounds and must be skipped.
		w.Write([]byte(`[
			{"service":101,"name":"Followers","type":"Default","category":"Social","rate":"0.90","min":50,"max":10000,"refill":true},
			{"service":102,"name":"Broken","type":"Default","category":"Social","rate":"0.10","min":100,"max":10,"refill":false},
			{"service":103,"name":"Likes","type":"Default","category":"Social","rate":"0.05","min":10,"max":50000,"refill":false}
		]`))
	})

	require.NoError(t, syncer.Sync(context.Background()))

	list, err := store.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, int64(101), list[0].VendorServiceID)
	assert.Equal(t, int64(103), list[1].VendorServiceID)
	assert.True(t, list[0].Rate.Equal(decimal.RequireFromString("0.90")))
}

func TestSyncUpsertsByVendorServiceID(t *testing.T) {
	var rate atomic.Value
	rate.Store(`"0.90"`)

	syncer, store := newTestSyncer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"service":101,"name":"Followers","type":"Default","category":"Social","rate":` +
			rate.Load().(string) + `,"min":50,"max":10000,"refill":true}]`))
	})

	require.NoError(t, syncer.Sync(context.Background()))

	rate.Store(`"1.20"`)
	require.NoError(t, syncer.Sync(context.Background()))

	list, err := store.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1, "re-sync must update in place, not duplicate")

	assert.True(t, list[0].Rate.Equal(decimal.RequireFromString("1.20")))
}

func TestEnsureCatalogPullsWhenEmpty(t *testing.T) {
	var calls atomic.Int32

	syncer, _ := newTestSyncer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"service":101,"name":"Followers","type":"Default","category":"Social","rate":"0.90","min":50,"max":10000,"refill":true}]`))
	})

	list, err := syncer.EnsureCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(1), calls.Load())

	// A populated catalog is served without calling the vendor again.
	list, err = syncer.EnsureCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsureCatalogVendorDown(t *testing.T) {
	syncer, _ := newTestSyncer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := syncer.EnsureCatalog(context.Background())
	require.ErrorIs(t, err, vendor.ErrVendorUnavailable)
}
