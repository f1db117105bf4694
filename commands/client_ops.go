package commands

import (
	"strconv"
	"strings"

	"github.com/powlabs/gochain/errors"
)

const (
	// Do nothing.
	NOOP Operation = iota
	// Send value to an address: transfer <address> <amount> [fee].
	TRANSFER
	// Print the wallet address.
	MY_ADDRESS
	// Fetch the wallet balance from the node.
	GET_BALANCE
	// Fetch a fee-rate suggestion: fee [target_blocks].
	FEE
	// Leave the wallet shell.
	EXIT
)

// ClientCommand is a wallet shell command.
type ClientCommand struct {
	Op   Operation
	Args []string
}

func (c ClientCommand) IsValid() bool {
	switch c.Op {
	case TRANSFER:
		if len(c.Args) != 2 && len(c.Args) != 3 {
			return false
		}
		amount, err := strconv.ParseUint(c.Args[1], 10, 64)
		if err != nil || amount == 0 {
			return false
		}
		if len(c.Args) == 3 {
			if _, err := strconv.ParseUint(c.Args[2], 10, 64); err != nil {
				return false
			}
		}
		return true
	case MY_ADDRESS, GET_BALANCE, EXIT:
		return len(c.Args) == 0
	case FEE:
		if len(c.Args) == 0 {
			return true
		}
		if len(c.Args) != 1 {
			return false
		}
		target, err := strconv.Atoi(c.Args[0])
		return err == nil && target > 0
	default:
		return false
	}
}

// CreateClientCommand parses one wallet shell line.
func CreateClientCommand(s string) (ClientCommand, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ClientCommand{}, errors.New(errors.KindUnknown, "command is empty")
	}
	cmd := ClientCommand{Args: fields[1:]}
	switch fields[0] {
	case "transfer":
		cmd.Op = TRANSFER
	case "my_address":
		cmd.Op = MY_ADDRESS
	case "get_balance":
		cmd.Op = GET_BALANCE
	case "fee":
		cmd.Op = FEE
	case "quit", "exit":
		cmd.Op = EXIT
	default:
		cmd.Op = NOOP
	}
	if !cmd.IsValid() {
		return ClientCommand{}, errors.New(errors.KindUnknown, "invalid command %q", s)
	}
	return cmd, nil
}
