// Package reward computes the EIU token split for a verified batch. The
// functions are pure; the figures they return determine real token issuance
// so full float precision is preserved end to end, with no rounding.
package reward

// Policy carries the issuance constants. Both splits are policy knobs, not
// derived values; main wires them from configuration.
type Policy struct {
	EIUPerGram float64

	CitizenSharePct   float64
	CollectorSharePct float64
	RecyclerSharePct  float64

	HighVolumeCount    int
	HighVolumeBonusPct float64
	MidVolumeCount     int
	MidVolumeBonusPct  float64

	BonusCitizenSharePct   float64
	BonusCollectorSharePct float64
	BonusRecyclerSharePct  float64
}

// DefaultPolicy returns the production issuance constants: 1 gram = 0.1 EIU,
// base split 85/10/5, volume bonus 5% above 50 transactions and 2% above 20,
// bonus re-split 60/30/10.
func DefaultPolicy() Policy {
	return Policy{
		EIUPerGram:             0.1,
		CitizenSharePct:        85,
		CollectorSharePct:      10,
		RecyclerSharePct:       5,
		HighVolumeCount:        50,
		HighVolumeBonusPct:     5,
		MidVolumeCount:         20,
		MidVolumeBonusPct:      2,
		BonusCitizenSharePct:   60,
		BonusCollectorSharePct: 30,
		BonusRecyclerSharePct:  10,
	}
}

// Allocation is the EIU split for one verified batch.
type Allocation struct {
	CitizenRewards float64 `json:"citizen_rewards"`
	CollectorBonus float64 `json:"collector_bonus"`
	RecyclerReward float64 `json:"recycler_reward"`
	VolumeBonus    float64 `json:"volume_bonus"`
	TotalEIU       float64 `json:"total_eiu"`
}

// Allocate computes the token split for the specified verified weight and
// member transaction count.
func Allocate(p Policy, verifiedWeightGrams int, transactionCount int) Allocation {
	baseEIU := float64(verifiedWeightGrams) * p.EIUPerGram

	alloc := Allocation{
		CitizenRewards: baseEIU * p.CitizenSharePct / 100,
		CollectorBonus: baseEIU * p.CollectorSharePct / 100,
		RecyclerReward: baseEIU * p.RecyclerSharePct / 100,
	}

	var bonus float64
	switch {
	case transactionCount > p.HighVolumeCount:
		bonus = baseEIU * p.HighVolumeBonusPct / 100
	case transactionCount > p.MidVolumeCount:
		bonus = baseEIU * p.MidVolumeBonusPct / 100
	}

	if bonus > 0 {
		alloc.CitizenRewards += bonus * p.BonusCitizenSharePct / 100
		alloc.CollectorBonus += bonus * p.BonusCollectorSharePct / 100
		alloc.RecyclerReward += bonus * p.BonusRecyclerSharePct / 100
	}

	alloc.VolumeBonus = bonus
	alloc.TotalEIU = baseEIU + bonus

	return alloc
}
