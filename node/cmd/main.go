package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/api"
	"github.com/powlabs/gochain/chain"
	"github.com/powlabs/gochain/commands"
	"github.com/powlabs/gochain/config"
	"github.com/powlabs/gochain/mempool"
	"github.com/powlabs/gochain/model"
	"github.com/powlabs/gochain/network"
	"github.com/powlabs/gochain/node"
	"github.com/powlabs/gochain/persistence"
	"github.com/powlabs/gochain/visualize"
)

var (
	configPath = flag.String("config_path", "", "path to node config yaml, defaults apply when empty")
	listenAddr = flag.String("listen", "", "override api listen address")
	dataDir    = flag.String("data_dir", "", "override block store directory")
	mine       = flag.Bool("mine", false, "start mining immediately")
)

// parseCommands reads the interactive shell and forwards parsed
// commands.
func parseCommands(cmd chan<- commands.Command) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		c, err := commands.CreateCommand(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		cmd <- c
	}
}

// showChain renders the last depth blocks of the chain.
func showChain(n *node.FullNode, depth uint64) {
	tip := n.Chain().Height()
	start := uint64(0)
	if depth > 0 && depth <= tip {
		start = tip - depth + 1
	}
	blocks := make([]*model.Block, 0, tip-start+1)
	for height := start; height <= tip; height++ {
		block, err := n.Chain().GetBlockByHeight(height)
		if err != nil {
			fmt.Println(err)
			return
		}
		blocks = append(blocks, block)
	}
	visualize.Render(os.Stdout, blocks)
}

// handleCommand dispatches one shell command. Returns true on quit.
func handleCommand(n *node.FullNode, peers *network.PeerSet, c commands.Command) bool {
	switch c.Op {
	case commands.START:
		if err := n.StartMining(); err != nil {
			fmt.Println(err)
		}
	case commands.STOP:
		n.StopMining()
	case commands.STATUS:
		status := n.Status()
		fmt.Printf("node %s  height=%d  difficulty=%d  mining=%v  mempool=%d\n",
			status.ID, status.Height, status.Difficulty, status.Mining, status.MempoolStats.Count)
	case commands.STATS:
		stats, err := n.Chain().GetStats()
		if err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Printf("height=%d  txs=%d  supply=%d  utxos=%d\n",
			stats.Height, stats.TotalTransactions, stats.TotalSupply, stats.UTXOCount)
	case commands.SHOW:
		depth := uint64(10)
		if len(c.Args) == 1 {
			parsed, _ := strconv.ParseUint(c.Args[0], 10, 64)
			depth = parsed
		}
		showChain(n, depth)
	case commands.ADD_PEER:
		if err := peers.AddPeer(c.Args[0]); err != nil {
			fmt.Println(err)
		}
	case commands.REMOVE_PEER:
		peers.RemovePeer(c.Args[0])
	case commands.LIST_PEER:
		for _, peer := range peers.Peers() {
			fmt.Println(peer)
		}
	case commands.QUIT:
		return true
	}
	return false
}

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logrus.WithError(err).Fatal("cannot load config")
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.APIListenAddr = *listenAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	store, err := persistence.Open(cfg.DataDir)
	if err != nil {
		logrus.WithError(err).Fatal("cannot open block store")
	}

	pool := mempool.NewPool(cfg.MempoolConfig())
	c, err := chain.NewBlockchain(cfg.ChainConfig(), store, pool)
	if err != nil {
		logrus.WithError(err).Fatal("cannot initialize chain")
	}

	n := node.NewFullNode(cfg.NodeConfig(), c)
	peers := network.NewPeerSet(0)
	for _, peer := range cfg.Peers {
		if err := peers.AddPeer(peer); err != nil {
			logrus.WithError(err).Warn("skipping peer")
		}
	}
	n.SetBroadcaster(peers)

	server := api.NewServer(n)
	go func() {
		if err := server.ListenAndServe(cfg.APIListenAddr); err != nil {
			logrus.WithError(err).Info("api server stopped")
		}
	}()

	if *mine {
		if err := n.StartMining(); err != nil {
			logrus.WithError(err).Warn("cannot start mining")
		}
	}

	cmd := make(chan commands.Command)
	go parseCommands(cmd)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sig:
			logrus.Info("shutting down")
		case c := <-cmd:
			if !handleCommand(n, peers, c) {
				continue
			}
		}
		server.Close()
		if err := n.Close(); err != nil {
			logrus.WithError(err).Warn("shutdown error")
		}
		return
	}
}
