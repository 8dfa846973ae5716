package market

import (
	"encoding/json"
	"math"
	"strconv"
	"sync/atomic"

	"go.dedis.ch/agora/content"
	"go.dedis.ch/agora/core/access"
	"go.dedis.ch/agora/core/execution"
	"go.dedis.ch/agora/core/execution/native"
	"go.dedis.ch/agora/core/store"
	"go.dedis.ch/agora/core/txn"
	"go.dedis.ch/agora/market/types"
	"go.dedis.ch/agora/token"
	"golang.org/x/xerrors"
)

const (
	// ContractName is the name of the contract.
	ContractName = "go.dedis.ch/agora.Market"

	// ContractUID is the unique 4-byte identifier of the contract.
	ContractUID = "MRKT"
)

// Command defines a command of the marketplace contract.
type Command string

const (
	// CmdList lists a new product.
	CmdList Command = "LIST"

	// CmdPurchase purchases a product.
	CmdPurchase Command = "PURCHASE"

	// CmdWithdraw withdraws the balance of the calling seller.
	CmdWithdraw Command = "WITHDRAW"

	// CmdCollect withdraws the platform fees. Owner only.
	CmdCollect Command = "COLLECT"

	// CmdActivate reactivates a product. Seller only.
	CmdActivate Command = "ACTIVATE"

	// CmdDeactivate deactivates a product. Seller only.
	CmdDeactivate Command = "DEACTIVATE"

	// CmdSetPrice updates the price of a product. Seller only.
	CmdSetPrice Command = "SETPRICE"

	// CmdSetFee updates the platform fee rate. Owner only.
	CmdSetFee Command = "SETFEE"
)

// commands defines the internal commands of the contract. The interface helps
// in testing the dispatch separately from the semantics.
type commands interface {
	list(snap store.Snapshot, step execution.Step) error
	purchase(snap store.Snapshot, step execution.Step) error
	withdraw(snap store.Snapshot, step execution.Step) error
	collect(snap store.Snapshot, step execution.Step) error
	setActive(snap store.Snapshot, step execution.Step, active bool) error
	setPrice(snap store.Snapshot, step execution.Step) error
	setFee(snap store.Snapshot, step execution.Step) error
}

// RegisterContract registers the marketplace contract to the given execution
// service.
func RegisterContract(exec *native.Service, c *Contract) {
	exec.Set(ContractName, c)
}

// Contract is the escrow ledger program. It owns the marketplace records of
// the snapshot and is the only writer of token transfers related to the
// marketplace.
//
// - implements native.Contract
type Contract struct {
	token   token.Ledger
	custody access.Identity

	// inflight is the program-wide guard rejecting re-entrant mutating
	// calls. The only moment the control can leave the program is the token
	// transfer, so the guard is held across it.
	inflight atomic.Bool

	events []types.Event

	cmd commands
}

// NewContract creates the marketplace contract settling its purchases on the
// given token ledger, with the funds held by the custody account.
func NewContract(ledger token.Ledger, custody access.Identity) (*Contract, error) {
	if ledger == nil || custody == nil {
		return nil, xerrors.Errorf("missing ledger or custody account: %w",
			ErrInvalidTokenReference)
	}

	contract := &Contract{
		token:   ledger,
		custody: custody,
	}

	contract.cmd = marketCommand{Contract: contract}

	return contract, nil
}

// Bootstrap writes the initial records of the marketplace: the configuration
// with the owner and the fee rate, the product counter and the empty platform
// accumulator. It must be called once on an empty snapshot.
func (c *Contract) Bootstrap(snap store.Snapshot, owner access.Identity, rateBps uint64) error {
	if rateBps > MaxFeeRateBps {
		return FeeTooHighError{Provided: rateBps, Max: MaxFeeRateBps}
	}

	key, err := identityKey(owner)
	if err != nil {
		return xerrors.Errorf("owner: %v", err)
	}

	existing, err := snap.Get(types.ConfigKey)
	if err != nil {
		return xerrors.Errorf("failed to read config: %v", err)
	}

	if existing != nil {
		return xerrors.New("already bootstrapped")
	}

	custody, err := identityKey(c.custody)
	if err != nil {
		return xerrors.Errorf("custody: %v", err)
	}

	config := types.Config{Owner: key, FeeRateBps: rateBps, TokenRef: custody}

	err = storeRecord(snap, types.ConfigKey, config)
	if err != nil {
		return xerrors.Errorf("failed to store config: %v", err)
	}

	err = storeUint(snap, types.CounterKey, 0)
	if err != nil {
		return xerrors.Errorf("failed to store counter: %v", err)
	}

	err = storeUint(snap, types.PlatformKey, 0)
	if err != nil {
		return xerrors.Errorf("failed to store accumulator: %v", err)
	}

	return nil
}

// Execute implements native.Contract. It runs the appropriate command on the
// snapshot.
func (c *Contract) Execute(snap store.Snapshot, step execution.Step) error {
	cmd := step.Current.GetArg(types.CmdArg)
	if len(cmd) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", types.CmdArg)
	}

	if !c.inflight.CompareAndSwap(false, true) {
		return xerrors.Errorf("command %s: %w", cmd, ErrReentrantCall)
	}

	defer c.inflight.Store(false)

	switch Command(cmd) {
	case CmdList:
		err := c.cmd.list(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to LIST: %w", err)
		}
	case CmdPurchase:
		err := c.cmd.purchase(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to PURCHASE: %w", err)
		}
	case CmdWithdraw:
		err := c.cmd.withdraw(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to WITHDRAW: %w", err)
		}
	case CmdCollect:
		err := c.cmd.collect(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to COLLECT: %w", err)
		}
	case CmdActivate:
		err := c.cmd.setActive(snap, step, true)
		if err != nil {
			return xerrors.Errorf("failed to ACTIVATE: %w", err)
		}
	case CmdDeactivate:
		err := c.cmd.setActive(snap, step, false)
		if err != nil {
			return xerrors.Errorf("failed to DEACTIVATE: %w", err)
		}
	case CmdSetPrice:
		err := c.cmd.setPrice(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to SETPRICE: %w", err)
		}
	case CmdSetFee:
		err := c.cmd.setFee(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to SETFEE: %w", err)
		}
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	return nil
}

// UID implements native.Contract.
func (c *Contract) UID() string {
	return ContractUID
}

// PopEvents drains the events recorded by the commands since the last call.
func (c *Contract) PopEvents() []types.Event {
	events := c.events
	c.events = nil

	return events
}

// marketCommand implements the commands of the marketplace contract.
//
// - implements commands
type marketCommand struct {
	*Contract
}

// list implements commands. It allocates the next product identifier and
// stores the record.
func (c marketCommand) list(snap store.Snapshot, step execution.Step) error {
	contentID := string(step.Current.GetArg(types.ContentArg))
	if contentID == "" {
		return xerrors.Errorf("empty: %w", ErrInvalidContent)
	}

	_, err := content.ParseID(contentID)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrInvalidContent)
	}

	price, err := priceArg(step.Current, types.PriceArg)
	if err != nil {
		return err
	}

	name := string(step.Current.GetArg(types.NameArg))
	if name == "" {
		return xerrors.Errorf("empty: %w", ErrInvalidName)
	}

	seller, err := identityKey(step.Current.GetIdentity())
	if err != nil {
		return xerrors.Errorf("seller: %v", err)
	}

	counter, err := loadUint(snap, types.CounterKey)
	if err != nil {
		return xerrors.Errorf("failed to read counter: %v", err)
	}

	id := counter + 1

	product := types.Product{
		ID:        id,
		Seller:    seller,
		ContentID: contentID,
		Price:     price,
		Name:      name,
		Active:    true,
	}

	err = storeRecord(snap, types.ProductKey(id), product)
	if err != nil {
		return xerrors.Errorf("failed to store product: %v", err)
	}

	err = storeUint(snap, types.CounterKey, id)
	if err != nil {
		return xerrors.Errorf("failed to store counter: %v", err)
	}

	account, err := loadSeller(snap, seller)
	if err != nil {
		return xerrors.Errorf("failed to read seller: %v", err)
	}

	account.Products = append(account.Products, id)

	err = storeRecord(snap, types.SellerKey(seller), account)
	if err != nil {
		return xerrors.Errorf("failed to store seller: %v", err)
	}

	// The content index maps a content identifier to the product listed
	// first with it, so that the access gate can resolve the policy bound
	// before the listing. A duplicate listing cannot rebind it.
	listingKey := types.ListingKey(contentID)

	bound, err := snap.Get(listingKey)
	if err != nil {
		return xerrors.Errorf("failed to read content index: %v", err)
	}

	if bound == nil {
		err = storeUint(snap, listingKey, id)
		if err != nil {
			return xerrors.Errorf("failed to store content index: %v", err)
		}
	}

	c.record(types.Listed{
		Product:   id,
		Seller:    seller,
		ContentID: contentID,
		Price:     price,
	})

	return nil
}

// purchase implements commands. It validates the purchase, commits the
// bookkeeping and only then pulls the price from the buyer.
func (c marketCommand) purchase(snap store.Snapshot, step execution.Step) error {
	id, err := uintArg(step.Current, types.ProductArg)
	if err != nil {
		return err
	}

	product, err := loadProduct(snap, id)
	if err != nil {
		return err
	}

	if !product.Active {
		return xerrors.Errorf("product %d: %w", id, ErrNotActive)
	}

	buyerIdent := step.Current.GetIdentity()

	buyer, err := identityKey(buyerIdent)
	if err != nil {
		return xerrors.Errorf("buyer: %v", err)
	}

	if buyer == product.Seller {
		return xerrors.Errorf("product %d: %w", id, ErrSelfPurchase)
	}

	existing, err := snap.Get(types.ReceiptKey(buyer, id))
	if err != nil {
		return xerrors.Errorf("failed to read receipt: %v", err)
	}

	if existing != nil {
		return xerrors.Errorf("product %d: %w", id, ErrAlreadyPurchased)
	}

	config, err := loadConfig(snap)
	if err != nil {
		return err
	}

	fee, share := Split(product.Price, config.FeeRateBps)

	// Effects: every record is written before the token ledger is invoked.

	receipt := types.Receipt{
		Product: id,
		Buyer:   buyer,
		Price:   product.Price,
		Fee:     fee,
	}

	err = storeRecord(snap, types.ReceiptKey(buyer, id), receipt)
	if err != nil {
		return xerrors.Errorf("failed to store receipt: %v", err)
	}

	product.Sales++

	err = storeRecord(snap, types.ProductKey(id), product)
	if err != nil {
		return xerrors.Errorf("failed to store product: %v", err)
	}

	account, err := loadSeller(snap, product.Seller)
	if err != nil {
		return xerrors.Errorf("failed to read seller: %v", err)
	}

	account.Sales++
	account.Balance += share
	account.Earnings += share

	err = storeRecord(snap, types.SellerKey(product.Seller), account)
	if err != nil {
		return xerrors.Errorf("failed to store seller: %v", err)
	}

	platform, err := loadUint(snap, types.PlatformKey)
	if err != nil {
		return xerrors.Errorf("failed to read accumulator: %v", err)
	}

	err = storeUint(snap, types.PlatformKey, platform+fee)
	if err != nil {
		return xerrors.Errorf("failed to store accumulator: %v", err)
	}

	// Interaction: pull the price into the custody account. The in-flight
	// guard is still held if the ledger calls back into the program.
	err = c.token.TransferFrom(c.custody, buyerIdent, c.custody, product.Price)
	if err != nil {
		return xerrors.Errorf("token transfer refused: %v", err)
	}

	c.record(types.Purchased{
		Product: id,
		Buyer:   buyer,
		Seller:  product.Seller,
		Price:   product.Price,
		Fee:     fee,
	})

	return nil
}

// withdraw implements commands. It zeroes the balance of the calling seller
// before transferring the captured amount.
func (c marketCommand) withdraw(snap store.Snapshot, step execution.Step) error {
	sellerIdent := step.Current.GetIdentity()

	seller, err := identityKey(sellerIdent)
	if err != nil {
		return xerrors.Errorf("seller: %v", err)
	}

	account, err := loadSeller(snap, seller)
	if err != nil {
		return xerrors.Errorf("failed to read seller: %v", err)
	}

	amount := account.Balance
	if amount == 0 {
		return xerrors.Errorf("balance is empty: %w", ErrNoBalance)
	}

	account.Balance = 0

	err = storeRecord(snap, types.SellerKey(seller), account)
	if err != nil {
		return xerrors.Errorf("failed to store seller: %v", err)
	}

	err = c.token.Transfer(c.custody, sellerIdent, amount)
	if err != nil {
		return xerrors.Errorf("token transfer refused: %v", err)
	}

	c.record(types.SellerWithdrawn{Seller: seller, Amount: amount})

	return nil
}

// collect implements commands. It empties the platform accumulator to the
// owner with the same zero-then-transfer discipline as the seller withdrawal.
func (c marketCommand) collect(snap store.Snapshot, step execution.Step) error {
	config, err := loadConfig(snap)
	if err != nil {
		return err
	}

	callerIdent := step.Current.GetIdentity()

	caller, err := identityKey(callerIdent)
	if err != nil {
		return xerrors.Errorf("caller: %v", err)
	}

	if caller != config.Owner {
		return xerrors.Errorf("caller is not the owner: %w", ErrNotOwner)
	}

	amount, err := loadUint(snap, types.PlatformKey)
	if err != nil {
		return xerrors.Errorf("failed to read accumulator: %v", err)
	}

	if amount == 0 {
		return xerrors.Errorf("accumulator is empty: %w", ErrNoFees)
	}

	err = storeUint(snap, types.PlatformKey, 0)
	if err != nil {
		return xerrors.Errorf("failed to store accumulator: %v", err)
	}

	err = c.token.Transfer(c.custody, callerIdent, amount)
	if err != nil {
		return xerrors.Errorf("token transfer refused: %v", err)
	}

	c.record(types.PlatformWithdrawn{Owner: caller, Amount: amount})

	return nil
}

// setActive implements commands. It toggles the active flag of a product of
// the calling seller.
func (c marketCommand) setActive(snap store.Snapshot, step execution.Step, active bool) error {
	id, err := uintArg(step.Current, types.ProductArg)
	if err != nil {
		return err
	}

	product, err := loadProduct(snap, id)
	if err != nil {
		return err
	}

	caller, err := identityKey(step.Current.GetIdentity())
	if err != nil {
		return xerrors.Errorf("caller: %v", err)
	}

	if caller != product.Seller {
		return xerrors.Errorf("product %d: %w", id, ErrNotSeller)
	}

	if product.Active == active {
		if active {
			return xerrors.Errorf("product %d: %w", id, ErrAlreadyActive)
		}

		return xerrors.Errorf("product %d: %w", id, ErrAlreadyInactive)
	}

	product.Active = active

	err = storeRecord(snap, types.ProductKey(id), product)
	if err != nil {
		return xerrors.Errorf("failed to store product: %v", err)
	}

	if active {
		c.record(types.Activated{Product: id})
	} else {
		c.record(types.Deactivated{Product: id})
	}

	return nil
}

// setPrice implements commands. It updates the price of a product of the
// calling seller. Existing receipts are untouched, the change applies to the
// future purchases only.
func (c marketCommand) setPrice(snap store.Snapshot, step execution.Step) error {
	id, err := uintArg(step.Current, types.ProductArg)
	if err != nil {
		return err
	}

	price, err := priceArg(step.Current, types.PriceArg)
	if err != nil {
		return err
	}

	product, err := loadProduct(snap, id)
	if err != nil {
		return err
	}

	caller, err := identityKey(step.Current.GetIdentity())
	if err != nil {
		return xerrors.Errorf("caller: %v", err)
	}

	if caller != product.Seller {
		return xerrors.Errorf("product %d: %w", id, ErrNotSeller)
	}

	product.Price = price

	err = storeRecord(snap, types.ProductKey(id), product)
	if err != nil {
		return xerrors.Errorf("failed to store product: %v", err)
	}

	c.record(types.PriceUpdated{Product: id, Price: price})

	return nil
}

// setFee implements commands. It updates the platform fee rate, subject to
// the same ceiling as the bootstrap.
func (c marketCommand) setFee(snap store.Snapshot, step execution.Step) error {
	rate, err := uintArg(step.Current, types.RateArg)
	if err != nil {
		return err
	}

	config, err := loadConfig(snap)
	if err != nil {
		return err
	}

	caller, err := identityKey(step.Current.GetIdentity())
	if err != nil {
		return xerrors.Errorf("caller: %v", err)
	}

	if caller != config.Owner {
		return xerrors.Errorf("caller is not the owner: %w", ErrNotOwner)
	}

	if rate > MaxFeeRateBps {
		return FeeTooHighError{Provided: rate, Max: MaxFeeRateBps}
	}

	config.FeeRateBps = rate

	err = storeRecord(snap, types.ConfigKey, config)
	if err != nil {
		return xerrors.Errorf("failed to store config: %v", err)
	}

	c.record(types.FeeRateUpdated{Rate: rate})

	return nil
}

func (c marketCommand) record(event types.Event) {
	c.events = append(c.events, event)
}

func identityKey(ident access.Identity) (string, error) {
	if ident == nil {
		return "", xerrors.New("identity is nil")
	}

	text, err := ident.MarshalText()
	if err != nil {
		return "", xerrors.Errorf("failed to marshal identity: %v", err)
	}

	return string(text), nil
}

func priceArg(tx txn.Transaction, key string) (uint64, error) {
	value, err := strconv.ParseUint(string(tx.GetArg(key)), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("%v: %w", err, ErrInvalidPrice)
	}

	if value == 0 || value > math.MaxUint64/10000 {
		return 0, xerrors.Errorf("%d is out of range: %w", value, ErrInvalidPrice)
	}

	return value, nil
}

func uintArg(tx txn.Transaction, key string) (uint64, error) {
	value, err := strconv.ParseUint(string(tx.GetArg(key)), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("malformed '%s' argument: %v", key, err)
	}

	return value, nil
}

func loadProduct(snap store.Readable, id uint64) (types.Product, error) {
	if id == 0 {
		return types.Product{}, xerrors.Errorf("id 0 is reserved: %w", ErrNotFound)
	}

	data, err := snap.Get(types.ProductKey(id))
	if err != nil {
		return types.Product{}, xerrors.Errorf("failed to read product: %v", err)
	}

	if data == nil {
		return types.Product{}, xerrors.Errorf("product %d: %w", id, ErrNotFound)
	}

	product := types.Product{}

	err = json.Unmarshal(data, &product)
	if err != nil {
		return types.Product{}, xerrors.Errorf("failed to decode product: %v", err)
	}

	return product, nil
}

func loadSeller(snap store.Readable, seller string) (types.SellerAccount, error) {
	data, err := snap.Get(types.SellerKey(seller))
	if err != nil {
		return types.SellerAccount{}, err
	}

	// The account is created lazily on the first listing or the first sale.
	if data == nil {
		return types.SellerAccount{}, nil
	}

	account := types.SellerAccount{}

	err = json.Unmarshal(data, &account)
	if err != nil {
		return types.SellerAccount{}, xerrors.Errorf("failed to decode seller: %v", err)
	}

	return account, nil
}

func loadConfig(snap store.Readable) (types.Config, error) {
	data, err := snap.Get(types.ConfigKey)
	if err != nil {
		return types.Config{}, xerrors.Errorf("failed to read config: %v", err)
	}

	if data == nil {
		return types.Config{}, xerrors.New("config not found")
	}

	config := types.Config{}

	err = json.Unmarshal(data, &config)
	if err != nil {
		return types.Config{}, xerrors.Errorf("failed to decode config: %v", err)
	}

	return config, nil
}

func loadUint(snap store.Readable, key []byte) (uint64, error) {
	data, err := snap.Get(key)
	if err != nil {
		return 0, err
	}

	if data == nil {
		return 0, nil
	}

	value, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("malformed record '%s': %v", key, err)
	}

	return value, nil
}

func storeUint(snap store.Snapshot, key []byte, value uint64) error {
	return snap.Set(key, []byte(strconv.FormatUint(value, 10)))
}

func storeRecord(snap store.Snapshot, key []byte, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return xerrors.Errorf("failed to encode record: %v", err)
	}

	return snap.Set(key, data)
}
