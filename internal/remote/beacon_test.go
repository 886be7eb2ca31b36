package remote

import (
	"context"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/chaincache/internal/chain"
	"github.com/mrz1836/chaincache/internal/chaindata"
	"github.com/mrz1836/chaincache/internal/remote/remotetest"
)

func TestSource_GetBlobData(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	srv.RespondBlobs("9000", http.StatusOK, map[string]any{
		"data": []map[string]any{{
			"index":          "0",
			"blob":           "0x0102",
			"kzg_commitment": "0xaa",
			"kzg_proof":      "0xbb",
		}},
	})

	got, err := newTestSource(t, srv, nil).GetBlobData(context.Background(), chaindata.BlobQuery{BlockID: 9000})
	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, "0", got.Data[0].Index)
	assert.Equal(t, hexutil.Bytes{0x01, 0x02}, got.Data[0].Blob)
	assert.Equal(t, hexutil.Bytes{0xaa}, got.Data[0].KZGCommitment)
	assert.Equal(t, 1, srv.Calls(remotetest.BlobMethod))
	assert.Equal(t, 0, srv.Calls("eth_getBlockByNumber"))
}

func TestSource_GetBlobDataEmptyBlock(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	srv.RespondBlobs("1", http.StatusOK, map[string]any{"data": nil})

	got, err := newTestSource(t, srv, nil).GetBlobData(context.Background(), chaindata.BlobQuery{BlockID: 1})
	require.NoError(t, err)
	assert.NotNil(t, got.Data)
	assert.Empty(t, got.Data)
}

func TestSource_GetBlobDataErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr error
		calls   int
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: ErrNotFoundUpstream, calls: 1},
		{name: "bad request", status: http.StatusBadRequest, wantErr: ErrBeaconRequest, calls: 1},
		{name: "server error retried", status: http.StatusServiceUnavailable, wantErr: ErrBeaconRequest, calls: 3},
		{name: "rate limited retried", status: http.StatusTooManyRequests, wantErr: chain.ErrRateLimited, calls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := remotetest.NewServer(t)
			srv.RespondBlobs("7", tt.status, map[string]any{"message": "nope"})

			_, err := newTestSource(t, srv, nil).GetBlobData(context.Background(), chaindata.BlobQuery{BlockID: 7})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.calls, srv.Calls(remotetest.BlobMethod))
		})
	}
}

func TestSource_GetBlobDataWithoutBeacon(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer(t)
	s, err := NewSource(srv.URL, "", nil)
	require.NoError(t, err)

	_, err = s.GetBlobData(context.Background(), chaindata.BlobQuery{BlockID: 1})
	require.ErrorIs(t, err, ErrBeaconNotConfigured)
	assert.Equal(t, 0, srv.TotalCalls())
}
