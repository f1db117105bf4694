// Package commands parses the interactive command lines of the node
// and wallet binaries.
package commands

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/powlabs/gochain/errors"
)

type Operation int

const (
	DEFAULT Operation = iota
	// Start the mining loop.
	START
	// Stop the mining loop.
	STOP
	// Print node status.
	STATUS
	// Print chain aggregates.
	STATS
	// Render the recent chain, optional depth argument.
	SHOW
	// Add a peer by base URL.
	ADD_PEER
	// Remove a peer by base URL.
	REMOVE_PEER
	// List registered peers.
	LIST_PEER
	// Shut the node down.
	QUIT
)

// A command is an operation with its arguments.
type Command struct {
	Op   Operation
	Args []string
}

func (c Command) IsValid() bool {
	switch c.Op {
	case START, STOP, STATUS, STATS, LIST_PEER, QUIT:
		return len(c.Args) == 0
	case ADD_PEER, REMOVE_PEER:
		if len(c.Args) != 1 {
			return false
		}
		u, err := url.Parse(c.Args[0])
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	case SHOW:
		if len(c.Args) == 0 {
			return true
		}
		if len(c.Args) != 1 {
			return false
		}
		depth, err := strconv.Atoi(c.Args[0])
		return err == nil && depth > 0
	default:
		return false
	}
}

// CreateCommand parses one input line into a command.
func CreateCommand(s string) (Command, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Command{}, errors.New(errors.KindUnknown, "command is empty")
	}
	cmd := Command{Args: fields[1:]}
	switch fields[0] {
	case "start":
		cmd.Op = START
	case "stop":
		cmd.Op = STOP
	case "status":
		cmd.Op = STATUS
	case "stats":
		cmd.Op = STATS
	case "show":
		cmd.Op = SHOW
	case "add_peer":
		cmd.Op = ADD_PEER
	case "remove_peer":
		cmd.Op = REMOVE_PEER
	case "list_peer":
		cmd.Op = LIST_PEER
	case "quit", "exit":
		cmd.Op = QUIT
	}
	if !cmd.IsValid() {
		return Command{}, errors.New(errors.KindUnknown, "invalid command %q", s)
	}
	return cmd, nil
}

// NewDefaultCommand is the no-op command.
func NewDefaultCommand() Command {
	return Command{Op: DEFAULT}
}

func (c Command) IsDefault() bool {
	return c.Op == DEFAULT
}
