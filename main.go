package main

import cmd "github.com/mariusgiger/batch-disburser/cmd/disburser"

func main() {
	cmd.Execute()
}
