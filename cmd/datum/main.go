package main

import (
	"github.com/simkjels/datumhub-cli/pkg/cmd"
)

func main() {
	cmd.Execute()
}
