package main

import (
	"github.com/slipwaylabs/slipway/cmd/slipway"
)

func main() {
	slipway.Execute()
}
