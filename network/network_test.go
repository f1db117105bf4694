package network

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlabs/gochain/model"
)

func TestAddAndRemovePeer(t *testing.T) {
	peers := NewPeerSet(time.Second)

	require.NoError(t, peers.AddPeer("http://10.0.0.1:8545/"))
	require.NoError(t, peers.AddPeer("http://10.0.0.2:8545"))

	// Trailing slash normalization makes this a duplicate.
	err := peers.AddPeer("http://10.0.0.1:8545")
	require.Error(t, err)

	require.Error(t, peers.AddPeer(""))
	require.Error(t, peers.AddPeer("10.0.0.3:8545"))

	assert.Equal(t, []string{"http://10.0.0.1:8545", "http://10.0.0.2:8545"}, peers.Peers())

	peers.RemovePeer("http://10.0.0.1:8545/")
	assert.Equal(t, []string{"http://10.0.0.2:8545"}, peers.Peers())
}

func TestBroadcastReachesAllPeers(t *testing.T) {
	var blockHits, txHits atomic.Int64
	var gotID atomic.Value

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/blocks":
			blockHits.Add(1)
		case "/transactions":
			txHits.Add(1)
			var tx model.Transaction
			if err := json.NewDecoder(r.Body).Decode(&tx); err == nil {
				gotID.Store(tx.ID)
			}
		}
		w.WriteHeader(http.StatusAccepted)
	})

	first := httptest.NewServer(handler)
	defer first.Close()
	second := httptest.NewServer(handler)
	defer second.Close()

	peers := NewPeerSet(time.Second)
	require.NoError(t, peers.AddPeer(first.URL))
	require.NoError(t, peers.AddPeer(second.URL))

	tx := model.NewTransaction(
		[]model.TxInput{{PreviousOutput: &model.OutPoint{TxID: "prev", Vout: 0}, Sequence: 1}},
		[]model.TxOutput{{Value: 100, Address: "carol"}},
		0,
	)
	peers.BroadcastTransaction(tx)
	assert.Equal(t, int64(2), txHits.Load())
	assert.Equal(t, tx.ID, gotID.Load())

	peers.BroadcastBlock(&model.Block{Transactions: []*model.Transaction{tx}})
	assert.Equal(t, int64(2), blockHits.Load())
}

func TestBroadcastSurvivesDeadPeer(t *testing.T) {
	var hits atomic.Int64
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer live.Close()

	peers := NewPeerSet(200 * time.Millisecond)
	require.NoError(t, peers.AddPeer(live.URL))
	require.NoError(t, peers.AddPeer("http://127.0.0.1:1"))

	peers.BroadcastBlock(&model.Block{})
	assert.Equal(t, int64(1), hits.Load())
}
