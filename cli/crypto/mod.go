// Package main is a standalone tool to manage the signing keys of the
// marketplace accounts: generate a key, or print it in one of the wire
// formats.
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/ucli"
	schnorr "go.dedis.ch/agora/crypto/ed25519/command"
)

var builder cli.Builder = ucli.NewBuilder("crypto", nil)
var printer io.Writer = os.Stderr

func main() {
	err := run(os.Args, schnorr.Initializer{})
	if err != nil {
		fmt.Fprintf(printer, "%+v\n", err)
	}
}

func run(args []string, inits ...cli.Initializer) error {
	for _, init := range inits {
		init.SetCommands(builder)
	}

	app := builder.Build()
	err := app.Run(args)
	if err != nil {
		return err
	}

	return nil
}
