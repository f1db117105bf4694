package visualize

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/powlabs/gochain/model"
)

func TestRender(t *testing.T) {
	coinbase := model.NewCoinbase(model.BaseBlockReward, "miner", 0)
	blocks := []*model.Block{
		{
			Header: model.BlockHeader{
				Height:       0,
				PreviousHash: model.GenesisPreviousHash,
				Difficulty:   8,
				Timestamp:    1700000000,
			},
			Transactions: []*model.Transaction{coinbase},
		},
		{
			Header: model.BlockHeader{
				Height:     1,
				Difficulty: 8,
				Timestamp:  1700000600,
			},
			Transactions: []*model.Transaction{coinbase},
		},
	}

	var buf bytes.Buffer
	Render(&buf, blocks)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[0]")
	assert.Contains(t, lines[0], "prev=000000000000..")
	assert.Contains(t, lines[1], "|")
	assert.Contains(t, lines[2], "[1]")
	assert.Contains(t, out, "txs=1")
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, nil)
	assert.Empty(t, buf.String())
}
