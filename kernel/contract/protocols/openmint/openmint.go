// Package openmint is a token anyone can mint in bounded batches
package openmint

import (
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/erc20"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/internal/kit"
	"github.com/xuperchain/xreplay/lib/numeric"
)

const (
	ProtocolName = "OpenMintToken"

	keyMaxSupply    = "maxSupply"
	keyPerMintLimit = "perMintLimit"
)

func Definition() contract.ProtocolDefinition {
	amount := kit.Param("amount", contract.ParamUint256)
	return contract.ProtocolDefinition{
		Name:    ProtocolName,
		Version: 1,
		Constructor: kit.Constructor(construct,
			kit.Param("name", contract.ParamString),
			kit.Param("symbol", contract.ParamString),
			kit.Param("maxSupply", contract.ParamUint256),
			kit.Param("perMintLimit", contract.ParamUint256),
			kit.Param("decimals", contract.ParamUint256)),
		Functions: kit.Functions(erc20.Functions(), []contract.FunctionSpec{
			kit.Mutating("mint", mint, amount),
			kit.Mutating("airdrop", airdrop, kit.Param("to", contract.ParamAddress), amount),
			kit.View("maxSupply", maxSupply),
			kit.View("perMintLimit", perMintLimit),
		}),
	}
}

func construct(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	if err := erc20.New(ctx).Init(args.String("name"), args.String("symbol"), args.Uint256("decimals")); err != nil {
		return nil, err
	}
	if err := kit.PutInt(ctx, keyMaxSupply, args.Uint256("maxSupply")); err != nil {
		return nil, err
	}
	return nil, kit.PutInt(ctx, keyPerMintLimit, args.Uint256("perMintLimit"))
}

func mint(ctx contract.KContext) (*contract.Response, error) {
	if err := mintTo(ctx, ctx.Caller(), ctx.Args().Uint256("amount")); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func airdrop(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	if err := mintTo(ctx, args.Address("to"), args.Uint256("amount")); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func mintTo(ctx contract.KContext, to string, amount *numeric.Int) error {
	if err := kit.Require(!amount.IsZero(), "amount must be positive"); err != nil {
		return err
	}
	limit, err := kit.GetInt(ctx, keyPerMintLimit)
	if err != nil {
		return err
	}
	if err := kit.Require(!amount.Gt(limit), "exceeded mint limit"); err != nil {
		return err
	}

	token := erc20.New(ctx)
	supply, err := token.TotalSupply()
	if err != nil {
		return err
	}
	capped, err := kit.GetInt(ctx, keyMaxSupply)
	if err != nil {
		return err
	}
	next, err := supply.Add(amount)
	if err != nil || next.Gt(capped) {
		return contract.Revert("exceeded max supply")
	}
	return token.Mint(to, amount)
}

func maxSupply(ctx contract.KContext) (*contract.Response, error) {
	v, err := kit.GetInt(ctx, keyMaxSupply)
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}

func perMintLimit(ctx contract.KContext) (*contract.Response, error) {
	v, err := kit.GetInt(ctx, keyPerMintLimit)
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}
