package contract

import "testing"

func TestValidProtocolName(t *testing.T) {
	valid := []string{"OpenMintToken", "DexLiquidityPool", "erc_20", "lua.counter"}
	invalid := []string{"", "ab", "1token", "token-x", "token.", "a very long name"}
	for _, name := range valid {
		if err := ValidProtocolName(name); err != nil {
			t.Errorf("%s should be valid: %v", name, err)
		}
	}
	for _, name := range invalid {
		if err := ValidProtocolName(name); err == nil {
			t.Errorf("%s should be invalid", name)
		}
	}
}

func TestValidFunctionName(t *testing.T) {
	for _, name := range []string{"mint", "_mint", "add_liquidity", "balanceOf"} {
		if err := ValidFunctionName(name); err != nil {
			t.Errorf("%s should be valid: %v", name, err)
		}
	}
	for _, name := range []string{"", "1x", "a-b", "a b"} {
		if err := ValidFunctionName(name); err == nil {
			t.Errorf("%s should be invalid", name)
		}
	}
}
