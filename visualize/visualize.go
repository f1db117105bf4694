// Package visualize renders a recent slice of the chain as text for
// the node shell's show command.
package visualize

import (
	"fmt"
	"io"
	"time"

	"github.com/powlabs/gochain/model"
)

// shortHash trims a hash for display.
func shortHash(hash model.Hash) string {
	if len(hash) <= 12 {
		return string(hash)
	}
	return string(hash[:12]) + ".."
}

// Render writes one line per block, oldest first, with a link marker
// between consecutive blocks.
func Render(w io.Writer, blocks []*model.Block) {
	for i, block := range blocks {
		if i > 0 {
			fmt.Fprintln(w, "  |")
		}
		ts := time.Unix(block.Header.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")
		fmt.Fprintf(w, "[%d] %s  prev=%s  txs=%d  difficulty=%d  %s\n",
			block.Header.Height,
			shortHash(block.Hash()),
			shortHash(block.Header.PreviousHash),
			len(block.Transactions),
			block.Header.Difficulty,
			ts,
		)
	}
}
