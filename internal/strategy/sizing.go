package strategy

import "math"

// ContractsPerSide splits the allotted share of buying power evenly across
// the call and put sides and converts each half into whole contracts at
// 100 shares of notional apiece. Accounts too small for one contract still
// trade one, matching the ledger's minimum lot.
func ContractsPerSide(buyingPower, usagePct, spot float64) int {
	if buyingPower <= 0 || usagePct <= 0 || spot <= 0 {
		return 1
	}
	usage := buyingPower * usagePct / 100
	half := usage / 2
	contractValue := spot * 100
	lots := int(math.Floor(half / contractValue))
	if lots < 1 {
		return 1
	}
	return lots
}

// UsageAmount is the dollar slice of buying power a usage percentage maps to.
func UsageAmount(buyingPower, usagePct float64) float64 {
	if buyingPower <= 0 || usagePct <= 0 {
		return 0
	}
	return buyingPower * usagePct / 100
}
