package main

import (
	"github.com/propshare-labs/distributor/cmd"
)

func main() {
	cmd.Execute()
}
