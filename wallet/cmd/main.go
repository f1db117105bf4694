package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/client"
	"github.com/powlabs/gochain/commands"
	"github.com/powlabs/gochain/model"
	"github.com/powlabs/gochain/wallet"
)

var (
	keyPath = flag.String("key_path", "wallet.key", "path to the wallet's private key")
	nodeURL = flag.String("node", "http://127.0.0.1:8545", "base url of the node api")
	create  = flag.Bool("create", false, "generate a new key at key_path")
)

func loadWallet() (*wallet.Wallet, error) {
	if *create {
		w, err := wallet.New()
		if err != nil {
			return nil, err
		}
		if err := w.Save(*keyPath); err != nil {
			return nil, err
		}
		return w, nil
	}
	return wallet.Load(*keyPath)
}

func handle(w *wallet.Wallet, cli *client.Client, cmd commands.ClientCommand) bool {
	switch cmd.Op {
	case commands.MY_ADDRESS:
		fmt.Println(w.Address())
	case commands.GET_BALANCE:
		balance, err := cli.GetBalance(w.Address())
		if err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Println(balance)
	case commands.FEE:
		target := 6
		if len(cmd.Args) == 1 {
			target, _ = strconv.Atoi(cmd.Args[0])
		}
		rate, err := cli.EstimateFee(target)
		if err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Printf("%d per byte for confirmation within %d blocks\n", rate, target)
	case commands.TRANSFER:
		to := model.Address(cmd.Args[0])
		amount, _ := strconv.ParseUint(cmd.Args[1], 10, 64)
		var fee uint64
		if len(cmd.Args) == 3 {
			fee, _ = strconv.ParseUint(cmd.Args[2], 10, 64)
		}
		tx, err := w.CreateTransaction(cli.UTXOSource(), to, amount, fee)
		if err != nil {
			fmt.Println(err)
			return false
		}
		if err := cli.SubmitTransaction(tx); err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Println("submitted", tx.ID)
	case commands.EXIT:
		return true
	}
	return false
}

func main() {
	flag.Parse()

	w, err := loadWallet()
	if err != nil {
		logrus.WithError(err).Fatal("cannot load wallet")
	}
	cli := client.New(*nodeURL, 0)
	fmt.Println("wallet address:", w.Address())

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd, err := commands.CreateClientCommand(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if handle(w, cli, cmd) {
			return
		}
	}
}
