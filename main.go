package main

import (
	"github.com/numerai/scoring-engine/cmd"
)

func main() {
	cmd.Execute()
}
