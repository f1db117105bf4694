// Package network relays accepted blocks and transactions to peer
// nodes over their HTTP interfaces. Relaying is best effort: a dead
// peer costs a logged warning, never an error on the hot path.
package network

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
)

// PeerSet tracks peer base URLs and fans submissions out to them.
type PeerSet struct {
	mu     sync.RWMutex
	peers  map[string]struct{}
	client *http.Client
}

// NewPeerSet returns an empty peer set with a bounded request timeout.
func NewPeerSet(timeout time.Duration) *PeerSet {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PeerSet{
		peers:  make(map[string]struct{}),
		client: &http.Client{Timeout: timeout},
	}
}

// AddPeer registers a peer by base URL, e.g. http://10.0.0.2:8545.
func (p *PeerSet) AddPeer(baseURL string) error {
	url := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if url == "" {
		return errors.New(errors.KindUnknown, "empty peer url")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return errors.New(errors.KindUnknown, "peer url %q must start with http:// or https://", baseURL)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.peers[url]; exists {
		return errors.New(errors.KindUnknown, "peer %s already registered", url)
	}
	p.peers[url] = struct{}{}
	logrus.WithField("peer", url).Info("peer added")
	return nil
}

// RemovePeer drops a peer. No-op when absent.
func (p *PeerSet) RemovePeer(baseURL string) {
	url := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.peers, url)
}

// Peers lists the registered base URLs in stable order.
func (p *PeerSet) Peers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	urls := make([]string, 0, len(p.peers))
	for url := range p.peers {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// BroadcastBlock posts the block to every peer's block endpoint.
func (p *PeerSet) BroadcastBlock(block *model.Block) {
	p.broadcast("/blocks", block)
}

// BroadcastTransaction posts the transaction to every peer's
// transaction endpoint.
func (p *PeerSet) BroadcastTransaction(tx *model.Transaction) {
	p.broadcast("/transactions", tx)
}

func (p *PeerSet) broadcast(path string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Warn("broadcast payload encoding failed")
		return
	}

	var wg sync.WaitGroup
	for _, url := range p.Peers() {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			resp, err := p.client.Post(target+path, "application/json", bytes.NewReader(data))
			if err != nil {
				logrus.WithField("peer", target).WithError(err).Warn("peer unreachable")
				return
			}
			resp.Body.Close()
			// Rejections are expected when the peer already has the
			// data; only transport failures matter here.
		}(url)
	}
	wg.Wait()
}
