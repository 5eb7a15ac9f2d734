package main

import "puzzle-ledger/cmd"

func main() {
	cmd.Execute()
}
