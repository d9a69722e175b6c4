package main

import "github.com/viktsys/tradejournal/cmd"

func main() {
	cmd.Execute()
}
