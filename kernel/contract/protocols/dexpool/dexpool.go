// Package dexpool is a constant product pool over two erc20 contracts
package dexpool

import (
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/internal/kit"
	"github.com/xuperchain/xreplay/lib/numeric"
)

const (
	ProtocolName = "DexLiquidityPool"

	keyToken0   = "token0"
	keyToken1   = "token1"
	keyReserve0 = "reserve0"
	keyReserve1 = "reserve1"
)

func Definition() contract.ProtocolDefinition {
	swapParams := []contract.ParamSpec{
		kit.Param("input_token", contract.ParamAddress),
		kit.Param("output_token", contract.ParamAddress),
		kit.Param("input_amount", contract.ParamUint256),
	}
	return contract.ProtocolDefinition{
		Name:    ProtocolName,
		Version: 1,
		Constructor: kit.Constructor(construct,
			kit.Param("token0", contract.ParamAddress),
			kit.Param("token1", contract.ParamAddress)),
		Functions: kit.Functions([]contract.FunctionSpec{
			kit.Mutating("add_liquidity", addLiquidity,
				kit.Param("token_0_amount", contract.ParamUint256),
				kit.Param("token_1_amount", contract.ParamUint256)),
			kit.Mutating("swap", swap, swapParams...),
			kit.View("calculate_output_amount", calculateOutputAmount, swapParams...),
			kit.View("reserves", reserves),
			kit.View("token0", tokenView(keyToken0)),
			kit.View("token1", tokenView(keyToken1)),
		}),
	}
}

func construct(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	token0, token1 := args.Address("token0"), args.Address("token1")
	if err := kit.Require(token0 != token1, "tokens must differ"); err != nil {
		return nil, err
	}
	if err := kit.PutString(ctx, keyToken0, token0); err != nil {
		return nil, err
	}
	return nil, kit.PutString(ctx, keyToken1, token1)
}

// pool 池子状态
type pool struct {
	token0, token1     string
	reserve0, reserve1 *numeric.Int
}

func loadPool(ctx contract.KContext) (*pool, error) {
	p := new(pool)
	var err error
	if p.token0, err = kit.GetString(ctx, keyToken0); err != nil {
		return nil, err
	}
	if p.token1, err = kit.GetString(ctx, keyToken1); err != nil {
		return nil, err
	}
	if p.reserve0, err = kit.GetInt(ctx, keyReserve0); err != nil {
		return nil, err
	}
	if p.reserve1, err = kit.GetInt(ctx, keyReserve1); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pool) save(ctx contract.KContext) error {
	if err := kit.PutInt(ctx, keyReserve0, p.reserve0); err != nil {
		return err
	}
	return kit.PutInt(ctx, keyReserve1, p.reserve1)
}

// reservesFor returns the reserve pair ordered as input, output
func (p *pool) reservesFor(input, output string) (in, out *numeric.Int, err error) {
	switch {
	case input == p.token0 && output == p.token1:
		return p.reserve0, p.reserve1, nil
	case input == p.token1 && output == p.token0:
		return p.reserve1, p.reserve0, nil
	}
	return nil, nil, contract.Revert("invalid token pair")
}

func (p *pool) setReserves(input string, in, out *numeric.Int) {
	if input == p.token0 {
		p.reserve0, p.reserve1 = in, out
	} else {
		p.reserve1, p.reserve0 = in, out
	}
}

// outputAmount = amountIn * reserveOut / (reserveIn + amountIn)
func outputAmount(amountIn, reserveIn, reserveOut *numeric.Int) (*numeric.Int, error) {
	if amountIn.IsZero() {
		return nil, contract.Revert("input amount must be positive")
	}
	denom, err := reserveIn.Add(amountIn)
	if err != nil {
		return nil, contract.Revert("reserve overflow")
	}
	out, err := numeric.MulDiv(amountIn, reserveOut, denom)
	if err != nil {
		return nil, contract.Revert("output amount: %v", err)
	}
	return out, nil
}

func pull(ctx contract.KContext, token string, amount *numeric.Int) error {
	_, err := ctx.Call(token, "transferFrom", map[string]interface{}{
		"from":   ctx.Caller(),
		"to":     ctx.ContractID(),
		"amount": amount,
	})
	return err
}

func push(ctx contract.KContext, token, to string, amount *numeric.Int) error {
	_, err := ctx.Call(token, "transfer", map[string]interface{}{
		"to":     to,
		"amount": amount,
	})
	return err
}

func addLiquidity(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	amount0, amount1 := args.Uint256("token_0_amount"), args.Uint256("token_1_amount")
	p, err := loadPool(ctx)
	if err != nil {
		return nil, err
	}
	if err := pull(ctx, p.token0, amount0); err != nil {
		return nil, err
	}
	if err := pull(ctx, p.token1, amount1); err != nil {
		return nil, err
	}
	if p.reserve0, err = p.reserve0.Add(amount0); err != nil {
		return nil, contract.Revert("reserve overflow")
	}
	if p.reserve1, err = p.reserve1.Add(amount1); err != nil {
		return nil, contract.Revert("reserve overflow")
	}
	if err := p.save(ctx); err != nil {
		return nil, err
	}
	err = ctx.Emit("LiquidityAdded", map[string]string{
		"provider":       ctx.Caller(),
		"token_0_amount": amount0.String(),
		"token_1_amount": amount1.String(),
	})
	if err != nil {
		return nil, err
	}
	return contract.OKBool(true), nil
}

func swap(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	input, output, amountIn := args.Address("input_token"), args.Address("output_token"), args.Uint256("input_amount")
	p, err := loadPool(ctx)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, err := p.reservesFor(input, output)
	if err != nil {
		return nil, err
	}
	amountOut, err := outputAmount(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	if amountOut.IsZero() {
		return nil, contract.Revert("insufficient output amount")
	}

	if err := pull(ctx, input, amountIn); err != nil {
		return nil, err
	}
	if err := push(ctx, output, ctx.Caller(), amountOut); err != nil {
		return nil, err
	}

	// amountOut < reserveOut holds by construction
	newIn, err := reserveIn.Add(amountIn)
	if err != nil {
		return nil, contract.Revert("reserve overflow")
	}
	newOut, _ := reserveOut.Sub(amountOut)
	p.setReserves(input, newIn, newOut)
	if err := p.save(ctx); err != nil {
		return nil, err
	}
	err = ctx.Emit("Swap", map[string]string{
		"sender":        ctx.Caller(),
		"input_token":   input,
		"output_token":  output,
		"input_amount":  amountIn.String(),
		"output_amount": amountOut.String(),
	})
	if err != nil {
		return nil, err
	}
	return contract.OKInt(amountOut), nil
}

func calculateOutputAmount(ctx contract.KContext) (*contract.Response, error) {
	args := ctx.Args()
	p, err := loadPool(ctx)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, err := p.reservesFor(args.Address("input_token"), args.Address("output_token"))
	if err != nil {
		return nil, err
	}
	out, err := outputAmount(args.Uint256("input_amount"), reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	return contract.OKInt(out), nil
}

func reserves(ctx contract.KContext) (*contract.Response, error) {
	p, err := loadPool(ctx)
	if err != nil {
		return nil, err
	}
	return contract.OKJSON(map[string]*numeric.Int{
		p.token0: p.reserve0,
		p.token1: p.reserve1,
	})
}

func tokenView(key string) contract.KernMethod {
	return func(ctx contract.KContext) (*contract.Response, error) {
		v, err := kit.GetString(ctx, key)
		if err != nil {
			return nil, err
		}
		return contract.OKString(v), nil
	}
}
