package erc20

import (
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/internal/kit"
)

var (
	paramAccount = kit.Param("account", contract.ParamAddress)
	paramTo      = kit.Param("to", contract.ParamAddress)
	paramAmount  = kit.Param("amount", contract.ParamUint256)
)

// Functions returns the erc20 surface every token protocol exposes
func Functions() []contract.FunctionSpec {
	return []contract.FunctionSpec{
		kit.View("name", name),
		kit.View("symbol", symbol),
		kit.View("decimals", decimals),
		kit.View("totalSupply", totalSupply),
		kit.View("balanceOf", balanceOf, paramAccount),
		kit.View("allowance", allowance,
			kit.Param("owner", contract.ParamAddress), kit.Param("spender", contract.ParamAddress)),
		kit.Mutating("transfer", transfer, paramTo, paramAmount),
		kit.Mutating("approve", approve, kit.Param("spender", contract.ParamAddress), paramAmount),
		kit.Mutating("transferFrom", transferFrom,
			kit.Param("from", contract.ParamAddress), paramTo, paramAmount),
		// Token.Mint and Token.Burn
		kit.Internal("_mint", paramTo, paramAmount),
		kit.Internal("_burn", kit.Param("from", contract.ParamAddress), paramAmount),
	}
}

func name(ctx contract.KContext) (*contract.Response, error) {
	v, err := New(ctx).Name()
	if err != nil {
		return nil, err
	}
	return contract.OKString(v), nil
}

func symbol(ctx contract.KContext) (*contract.Response, error) {
	v, err := New(ctx).Symbol()
	if err != nil {
		return nil, err
	}
	return contract.OKString(v), nil
}

func decimals(ctx contract.KContext) (*contract.Response, error) {
	v, err := New(ctx).Decimals()
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}

func totalSupply(ctx contract.KContext) (*contract.Response, error) {
	v, err := New(ctx).TotalSupply()
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}

func balanceOf(ctx contract.KContext) (*contract.Response, error) {
	v, err := New(ctx).BalanceOf(ctx.Args().Address("account"))
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}

func allowance(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	v, err := New(ctx).Allowance(args.Address("owner"), args.Address("spender"))
	if err != nil {
		return nil, err
	}
	return contract.OKInt(v), nil
}

func transfer(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	if err := New(ctx).Transfer(ctx.Caller(), args.Address("to"), args.Uint256("amount")); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func approve(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	if err := New(ctx).Approve(ctx.Caller(), args.Address("spender"), args.Uint256("amount")); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

// transferFrom spends the caller's allowance on from
func transferFrom(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	from, amount := args.Address("from"), args.Uint256("amount")
	token := New(ctx)
	if err := token.SpendAllowance(from, ctx.Caller(), amount); err != nil {
		return nil, err
	}
	if err := token.Transfer(from, args.Address("to"), amount); err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}
