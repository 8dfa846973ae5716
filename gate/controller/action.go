package controller

import (
	"encoding/base64"
	"fmt"
	"os"

	"go.dedis.ch/agora/cli/node"
	"go.dedis.ch/agora/crypto"
	"go.dedis.ch/agora/crypto/ed25519"
	"go.dedis.ch/agora/gate"
	"go.dedis.ch/agora/gate/types"
	"go.dedis.ch/agora/mino"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Manifest describes the cohort of gatekeepers. Each member carries the text
// form of its mino address and its base64 verification key.
type Manifest struct {
	Threshold int      `yaml:"threshold"`
	Members   []Member `yaml:"members"`
}

// Member is one gatekeeper of the manifest.
type Member struct {
	Address string `yaml:"address"`
	Pubkey  string `yaml:"pubkey"`
}

// setupAction reads the manifest and deals the shares to the cohort.
//
// - implements node.ActionTemplate
type setupAction struct{}

// Execute implements node.ActionTemplate.
func (setupAction) Execute(ctx node.Context) error {
	var actor gate.Actor
	err := ctx.Injector.Resolve(&actor)
	if err != nil {
		return xerrors.Errorf("actor: %v", err)
	}

	var no mino.Mino
	err = ctx.Injector.Resolve(&no)
	if err != nil {
		return xerrors.Errorf("mino: %v", err)
	}

	data, err := os.ReadFile(ctx.Flags.Path("manifest"))
	if err != nil {
		return xerrors.Errorf("while reading the manifest: %v", err)
	}

	var manifest Manifest

	err = yaml.Unmarshal(data, &manifest)
	if err != nil {
		return xerrors.Errorf("while decoding the manifest: %v", err)
	}

	cohort, err := readCohort(no, manifest)
	if err != nil {
		return xerrors.Errorf("invalid manifest: %v", err)
	}

	pubkey, err := actor.Setup(cohort, manifest.Threshold)
	if err != nil {
		return xerrors.Errorf("failed to setup: %v", err)
	}

	buf, err := pubkey.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("while marshaling: %v", err)
	}

	fmt.Fprintf(ctx.Out, "cohort ready, pubkey: %s",
		base64.StdEncoding.EncodeToString(buf))

	return nil
}

func readCohort(no mino.Mino, manifest Manifest) (types.Cohort, error) {
	if len(manifest.Members) == 0 {
		return types.Cohort{}, xerrors.New("empty cohort")
	}

	addrs := make([]mino.Address, len(manifest.Members))
	pubkeys := make([]crypto.PublicKey, len(manifest.Members))

	for i, member := range manifest.Members {
		addrs[i] = no.GetAddressFactory().FromText([]byte(member.Address))

		buf, err := base64.StdEncoding.DecodeString(member.Pubkey)
		if err != nil {
			return types.Cohort{}, xerrors.Errorf("member %d: base64: %v", i, err)
		}

		pubkey, err := ed25519.NewPublicKey(buf)
		if err != nil {
			return types.Cohort{}, xerrors.Errorf("member %d: pubkey: %v", i, err)
		}

		pubkeys[i] = pubkey
	}

	return types.NewCohort(addrs, pubkeys), nil
}

// exportAction prints the manifest entry of the local member.
//
// - implements node.ActionTemplate
type exportAction struct{}

// Execute implements node.ActionTemplate.
func (exportAction) Execute(ctx node.Context) error {
	var no mino.Mino
	err := ctx.Injector.Resolve(&no)
	if err != nil {
		return xerrors.Errorf("mino: %v", err)
	}

	var signer crypto.Signer
	err = ctx.Injector.Resolve(&signer)
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	buf, err := signer.GetPublicKey().MarshalBinary()
	if err != nil {
		return xerrors.Errorf("while marshaling: %v", err)
	}

	entry := Member{
		Address: no.GetAddress().String(),
		Pubkey:  base64.StdEncoding.EncodeToString(buf),
	}

	out, err := yaml.Marshal(entry)
	if err != nil {
		return xerrors.Errorf("while encoding: %v", err)
	}

	fmt.Fprintf(ctx.Out, "%s", out)

	return nil
}
