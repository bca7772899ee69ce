package allocator

import (
	"context"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"gorm.io/gorm"
)

// Silo is a slave's full classification tuple.
type Silo struct {
	PoolID        uint
	DistroID      uint
	BitlengthID   uint
	PurposeID     uint
	DatacenterID  uint
	TrustLevelID  uint
	EnvironmentID uint
}

// SiloOf extracts the classification of s.
func SiloOf(s *db.Slave) Silo {
	return Silo{
		PoolID:        s.PoolID,
		DistroID:      s.DistroID,
		BitlengthID:   s.BitlengthID,
		PurposeID:     s.PurposeID,
		DatacenterID:  s.DatacenterID,
		TrustLevelID:  s.TrustLevelID,
		EnvironmentID: s.EnvironmentID,
	}
}

// BestMasters returns the masters eligible for silo, best first.
//
// Only the pool is a hard constraint. When the pool has masters in the
// silo's datacenter the result is limited to those; otherwise every master
// in the pool is eligible. Within the result masters are ordered by
// nickname. An empty pool yields an empty slice.
func BestMasters(ctx context.Context, gdb *gorm.DB, silo Silo) ([]db.Master, error) {
	var pooled []db.Master
	err := gdb.WithContext(ctx).
		Where("pool_id = ?", silo.PoolID).
		Order("nickname ASC").
		Find(&pooled).Error
	if err != nil {
		return nil, err
	}

	var local []db.Master
	for _, m := range pooled {
		if m.DatacenterID == silo.DatacenterID {
			local = append(local, m)
		}
	}
	if len(local) > 0 {
		return local, nil
	}
	return pooled, nil
}
