package entitlement

import "github.com/rawgroundbeef/openfacilitator/internal/repository"

// tierRank orders the tiers: basic < pro. Unknown tiers rank lowest so a
// malformed request can never upgrade a subscription.
var tierRank = map[repository.Tier]int{
	repository.TierBasic: 1,
	repository.TierPro:   2,
}

// maxTier returns the higher of the two tiers. A pro subscriber who pays
// for another basic period stays pro.
func maxTier(a, b repository.Tier) repository.Tier {
	if tierRank[b] > tierRank[a] {
		return b
	}
	return a
}
