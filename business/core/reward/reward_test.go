package reward_test

import (
	"math"
	"testing"

	"github.com/plastix-network/plastix/business/core/reward"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestAllocate(t *testing.T) {
	type table struct {
		name        string
		weightGrams int
		tranCount   int
		citizen     float64
		collector   float64
		recycler    float64
		bonus       float64
		total       float64
	}

	tt := []table{
		{
			name:        "base split no bonus",
			weightGrams: 10000,
			tranCount:   10,
			citizen:     850,
			collector:   100,
			recycler:    50,
			bonus:       0,
			total:       1000,
		},
		{
			name:        "mid volume bonus above 20",
			weightGrams: 10000,
			tranCount:   30,
			citizen:     862,
			collector:   106,
			recycler:    52,
			bonus:       20,
			total:       1020,
		},
		{
			name:        "high volume bonus above 50",
			weightGrams: 10000,
			tranCount:   60,
			citizen:     880,
			collector:   115,
			recycler:    55,
			bonus:       50,
			total:       1050,
		},
		{
			name:        "exactly 20 transactions earns no bonus",
			weightGrams: 10000,
			tranCount:   20,
			citizen:     850,
			collector:   100,
			recycler:    50,
			bonus:       0,
			total:       1000,
		},
		{
			name:        "exactly 50 transactions earns the mid bonus",
			weightGrams: 10000,
			tranCount:   50,
			citizen:     862,
			collector:   106,
			recycler:    52,
			bonus:       20,
			total:       1020,
		},
		{
			name:        "zero weight allocates nothing",
			weightGrams: 0,
			tranCount:   10,
		},
	}

	t.Log("Given the need to compute the EIU split for a verified batch.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen allocating %dg across %d transactions.", testID, tst.weightGrams, tst.tranCount)
			{
				f := func(t *testing.T) {
					alloc := reward.Allocate(reward.DefaultPolicy(), tst.weightGrams, tst.tranCount)

					checks := []struct {
						field string
						got   float64
						exp   float64
					}{
						{"citizen", alloc.CitizenRewards, tst.citizen},
						{"collector", alloc.CollectorBonus, tst.collector},
						{"recycler", alloc.RecyclerReward, tst.recycler},
						{"bonus", alloc.VolumeBonus, tst.bonus},
						{"total", alloc.TotalEIU, tst.total},
					}

					for _, chk := range checks {
						if math.Abs(chk.got-chk.exp) > 1e-9 {
							t.Errorf("\t%s\tTest %d:\tShould have the correct %s amount.", failed, testID, chk.field)
							t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, chk.got)
							t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, chk.exp)
						} else {
							t.Logf("\t%s\tTest %d:\tShould have the correct %s amount.", success, testID, chk.field)
						}
					}

					sum := alloc.CitizenRewards + alloc.CollectorBonus + alloc.RecyclerReward
					if math.Abs(sum-alloc.TotalEIU) > 1e-9 {
						t.Errorf("\t%s\tTest %d:\tShould have the shares sum to the total.", failed, testID)
						t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, sum)
						t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, alloc.TotalEIU)
					} else {
						t.Logf("\t%s\tTest %d:\tShould have the shares sum to the total.", success, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}
