package controller

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/core/execution/native"
	"go.dedis.ch/agora/core/txn"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/crypto/ed25519"
	"go.dedis.ch/agora/market"
	"go.dedis.ch/agora/market/types"
	"go.dedis.ch/agora/token"
	"go.dedis.ch/agora/token/mem"
	"golang.org/x/xerrors"
)

const submitTimeout = 10 * time.Second

// listAction submits a LIST transaction and waits for its result.
//
// - implements node.ActionTemplate
type listAction struct{}

// Execute implements node.ActionTemplate.
func (listAction) Execute(ctx node.Context) error {
	args := []txn.Arg{
		{Key: native.ContractArg, Value: []byte(market.ContractName)},
		{Key: types.CmdArg, Value: []byte(market.CmdList)},
		{Key: types.ContentArg, Value: []byte(ctx.Flags.String("content"))},
		{Key: types.PriceArg, Value: []byte(strconv.Itoa(ctx.Flags.Int("price")))},
		{Key: types.NameArg, Value: []byte(ctx.Flags.String("name"))},
	}

	evt, err := submitAndWait(ctx, args)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "product listed: %s", evt.Message)

	return nil
}

// purchaseAction approves the escrow for the price of the product and submits
// a PURCHASE transaction.
//
// - implements node.ActionTemplate
type purchaseAction struct{}

// Execute implements node.ActionTemplate.
func (purchaseAction) Execute(ctx node.Context) error {
	var srvc *market.Service
	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("service: %v", err)
	}

	var signer crypto.Signer
	err = ctx.Injector.Resolve(&signer)
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	var ledger token.Ledger
	err = ctx.Injector.Resolve(&ledger)
	if err != nil {
		return xerrors.Errorf("ledger: %v", err)
	}

	id := uint64(ctx.Flags.Int("product"))

	product, err := srvc.GetProduct(id)
	if err != nil {
		return xerrors.Errorf("product: %v", err)
	}

	err = ledger.Approve(signer.GetPublicKey(), srvc.Custody(), product.Price)
	if err != nil {
		return xerrors.Errorf("approve: %v", err)
	}

	args := []txn.Arg{
		{Key: native.ContractArg, Value: []byte(market.ContractName)},
		{Key: types.CmdArg, Value: []byte(market.CmdPurchase)},
		{Key: types.ProductArg, Value: []byte(strconv.FormatUint(id, 10))},
	}

	evt, err := submitAndWait(ctx, args)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "purchase settled: %s", evt.Message)

	return nil
}

// withdrawAction submits a WITHDRAW transaction.
//
// - implements node.ActionTemplate
type withdrawAction struct{}

// Execute implements node.ActionTemplate.
func (withdrawAction) Execute(ctx node.Context) error {
	args := []txn.Arg{
		{Key: native.ContractArg, Value: []byte(market.ContractName)},
		{Key: types.CmdArg, Value: []byte(market.CmdWithdraw)},
	}

	evt, err := submitAndWait(ctx, args)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "withdrawn: %s", evt.Message)

	return nil
}

// collectAction submits a COLLECT transaction for the platform fees.
//
// - implements node.ActionTemplate
type collectAction struct{}

// Execute implements node.ActionTemplate.
func (collectAction) Execute(ctx node.Context) error {
	args := []txn.Arg{
		{Key: native.ContractArg, Value: []byte(market.ContractName)},
		{Key: types.CmdArg, Value: []byte(market.CmdCollect)},
	}

	evt, err := submitAndWait(ctx, args)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "collected: %s", evt.Message)

	return nil
}

// productAction prints the state of a product.
//
// - implements node.ActionTemplate
type productAction struct{}

// Execute implements node.ActionTemplate.
func (productAction) Execute(ctx node.Context) error {
	var srvc *market.Service
	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("service: %v", err)
	}

	product, err := srvc.GetProduct(uint64(ctx.Flags.Int("product")))
	if err != nil {
		return xerrors.Errorf("product: %v", err)
	}

	fmt.Fprintf(ctx.Out, "product %d %q price=%d active=%t sales=%d",
		product.ID, product.Name, product.Price, product.Active, product.Sales)

	return nil
}

// mintAction credits an account of the in-memory token ledger.
//
// - implements node.ActionTemplate
type mintAction struct{}

// Execute implements node.ActionTemplate.
func (mintAction) Execute(ctx node.Context) error {
	var ledger *mem.Ledger
	err := ctx.Injector.Resolve(&ledger)
	if err != nil {
		return xerrors.Errorf("ledger: %v", err)
	}

	pubkey, err := ed25519.ParsePublicKey(ctx.Flags.String("account"))
	if err != nil {
		return xerrors.Errorf("account: %v", err)
	}

	amount := ctx.Flags.Int("amount")
	if amount <= 0 {
		return xerrors.Errorf("invalid amount %d", amount)
	}

	err = ledger.Mint(pubkey, uint64(amount))
	if err != nil {
		return xerrors.Errorf("mint: %v", err)
	}

	fmt.Fprintf(ctx.Out, "minted %d tokens", amount)

	return nil
}

// submitAndWait creates a signed transaction with the given arguments, submits
// it and waits for the service to settle it.
func submitAndWait(ctx node.Context, args []txn.Arg) (market.Event, error) {
	var srvc *market.Service
	err := ctx.Injector.Resolve(&srvc)
	if err != nil {
		return market.Event{}, xerrors.Errorf("service: %v", err)
	}

	var manager txn.Manager
	err = ctx.Injector.Resolve(&manager)
	if err != nil {
		return market.Event{}, xerrors.Errorf("manager: %v", err)
	}

	err = manager.Sync()
	if err != nil {
		return market.Event{}, xerrors.Errorf("sync: %v", err)
	}

	tx, err := manager.Make(args...)
	if err != nil {
		return market.Event{}, xerrors.Errorf("make: %v", err)
	}

	watchCtx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	events := srvc.Watch(watchCtx)

	err = srvc.Submit(tx)
	if err != nil {
		return market.Event{}, xerrors.Errorf("submit: %v", err)
	}

	for evt := range events {
		if !bytes.Equal(evt.TxID, tx.GetID()) {
			continue
		}

		if !evt.Accepted {
			return market.Event{}, xerrors.Errorf("transaction rejected: %s", evt.Message)
		}

		return evt, nil
	}

	return market.Event{}, xerrors.New("transaction result timed out")
}
