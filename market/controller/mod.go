// Package controller implements a controller for the marketplace service. It
// loads the platform key, creates the escrow contract and starts the service,
// then exposes the commands to interact with it.
package controller

import (
	"path/filepath"

	"go.dedis.ch/agora/cli"
	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/core/store/kv"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/crypto/ed25519"
	"go.dedis.ch/agora/crypto/loader"
	"go.dedis.ch/agora/market"
	"go.dedis.ch/agora/token"
	"go.dedis.ch/agora/token/mem"
	"golang.org/x/xerrors"
)

const privateKeyFile = "private.key"

const flagFeeRate = "fee-rate"

// miniController wires the marketplace into the daemon.
//
// - implements node.Initializer
type miniController struct {
	signerFn func(flags cli.Flags) (crypto.Signer, error)
}

// NewController creates a new controller for the marketplace service.
func NewController() node.Initializer {
	return miniController{
		signerFn: loadSigner,
	}
}

// SetCommands implements node.Initializer. It registers the market commands.
func (m miniController) SetCommands(builder node.Builder) {
	builder.SetStartFlags(cli.IntFlag{
		Name:     flagFeeRate,
		Usage:    "platform fee rate in basis points",
		Required: false,
		Value:    500,
	})

	cmd := builder.SetCommand("market")

	sub := cmd.SetSubCommand("list")
	sub.SetDescription("list a product for sale")
	sub.SetFlags(cli.StringFlag{
		Name:     "content",
		Usage:    "content identifier of the sealed asset",
		Required: true,
	}, cli.IntFlag{
		Name:     "price",
		Usage:    "price of the product in token units",
		Required: true,
	}, cli.StringFlag{
		Name:     "name",
		Usage:    "display name of the product",
		Required: false,
	})
	sub.SetAction(builder.MakeAction(listAction{}))

	sub = cmd.SetSubCommand("purchase")
	sub.SetDescription("purchase a product")
	sub.SetFlags(cli.IntFlag{
		Name:     "product",
		Usage:    "identifier of the product",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(purchaseAction{}))

	sub = cmd.SetSubCommand("withdraw")
	sub.SetDescription("withdraw the accumulated seller balance")
	sub.SetAction(builder.MakeAction(withdrawAction{}))

	sub = cmd.SetSubCommand("collect")
	sub.SetDescription("withdraw the accumulated platform fees")
	sub.SetAction(builder.MakeAction(collectAction{}))

	sub = cmd.SetSubCommand("product")
	sub.SetDescription("print the state of a product")
	sub.SetFlags(cli.IntFlag{
		Name:     "product",
		Usage:    "identifier of the product",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(productAction{}))

	sub = cmd.SetSubCommand("mint")
	sub.SetDescription("mint tokens to an account of the in-memory ledger")
	sub.SetFlags(cli.StringFlag{
		Name:     "account",
		Usage:    "text form of the account public key",
		Required: true,
	}, cli.IntFlag{
		Name:     "amount",
		Usage:    "amount of tokens to mint",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(mintAction{}))
}

// OnStart implements node.Initializer. It creates the ledger, the contract and
// the service, and injects them for the other controllers.
func (m miniController) OnStart(flags cli.Flags, inj node.Injector) error {
	signer, err := m.signerFn(flags)
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	inj.Inject(signer)

	custody, ok := signer.GetPublicKey().(ed25519.PublicKey)
	if !ok {
		return xerrors.Errorf("invalid public key of type '%T'", signer.GetPublicKey())
	}

	ledger := mem.NewLedger()
	inj.Inject(ledger)

	contract, err := market.NewContract(ledger, custody)
	if err != nil {
		return xerrors.Errorf("contract: %v", err)
	}

	var db kv.DB
	err = inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("db: %v", err)
	}

	rate := flags.Int(flagFeeRate)
	if rate < 0 || uint64(rate) > market.MaxFeeRateBps {
		return xerrors.Errorf("invalid fee rate %d", rate)
	}

	srvc, err := market.NewService(contract, db, custody, uint64(rate))
	if err != nil {
		return xerrors.Errorf("service: %v", err)
	}

	err = srvc.Listen()
	if err != nil {
		return xerrors.Errorf("while starting the service: %v", err)
	}

	inj.Inject(srvc)

	return nil
}

// OnStop implements node.Initializer. It closes the service.
func (m miniController) OnStop(inj node.Injector) error {
	var srvc *market.Service
	err := inj.Resolve(&srvc)
	if err != nil {
		return xerrors.Errorf("injector: %v", err)
	}

	err = srvc.Close()
	if err != nil {
		return xerrors.Errorf("while closing the service: %v", err)
	}

	return nil
}

func loadSigner(flags cli.Flags) (crypto.Signer, error) {
	ld := loader.NewFileLoader(filepath.Join(flags.Path("config"), privateKeyFile))

	data, err := ld.LoadOrCreate(generator{})
	if err != nil {
		return nil, xerrors.Errorf("while loading the key: %v", err)
	}

	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("while unmarshaling the key: %v", err)
	}

	return signer, nil
}

// generator creates a new private key when none is stored yet.
//
// - implements loader.Generator
type generator struct{}

// Generate implements loader.Generator.
func (generator) Generate() ([]byte, error) {
	data, err := ed25519.NewSigner().(ed25519.Signer).MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("while marshaling the signer: %v", err)
	}

	return data, nil
}

// interface guard to make sure the in-memory ledger can be resolved as the
// token ledger of the actions.
var _ token.Ledger = (*mem.Ledger)(nil)
