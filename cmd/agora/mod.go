// Package main implements the marketplace daemon based on in-memory
// components.
//
//	go run mod.go start
//	go run mod.go --config /tmp/agora market list --content XX --price 100
//	go run mod.go --config /tmp/agora gate setup --manifest cohort.yml
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/agora/cli/node"
	kv "go.dedis.ch/agora/core/store/kv/controller"
	signed "go.dedis.ch/agora/core/txn/signed/controller"
	gate "go.dedis.ch/agora/gate/controller"
	indexer "go.dedis.ch/agora/index/controller"
	market "go.dedis.ch/agora/market/controller"
	minoch "go.dedis.ch/agora/mino/minoch/controller"
	proxy "go.dedis.ch/agora/mino/proxy/http/controller"
)

var printer io.Writer = os.Stderr

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(printer, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	builder := node.NewBuilder(
		kv.NewMinimal(),
		minoch.NewController(),
		market.NewController(),
		signed.NewManagerController(),
		gate.NewController(),
		indexer.NewController(),
		proxy.NewController(),
	)

	app := builder.Build()

	return app.Run(args)
}
