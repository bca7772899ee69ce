package seed

import (
	"context"
	"fmt"
	"sort"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/log"
	"gorm.io/gorm"
)

// Roster is everything dbinit imports.
type Roster struct {
	Slaves    []SlaveRecord
	Masters   []MasterRecord
	Passwords []PasswordRecord
}

// Summary counts what Load inserted.
type Summary struct {
	Slaves    int
	Masters   int
	Passwords int
	Pools     int
}

// Load drops the schema, recreates it and imports roster. Reference values
// are deduplicated and given ids in sorted order. The whole import is one
// transaction: on failure the previous contents survive.
func Load(ctx context.Context, gormDB *gorm.DB, roster Roster) (Summary, error) {
	var sum Summary
	err := gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.Reset(tx); err != nil {
			return err
		}

		var (
			distros, bitlengths, purposes, datacenters []string
			trustlevels, environments, pools           []string
		)
		for _, s := range roster.Slaves {
			distros = append(distros, s.Distro)
			bitlengths = append(bitlengths, s.Bitlength)
			purposes = append(purposes, s.Purpose)
			datacenters = append(datacenters, s.Datacenter)
			trustlevels = append(trustlevels, s.TrustLevel)
			environments = append(environments, s.Environment)
			pools = append(pools, s.Pool)
		}
		for _, m := range roster.Masters {
			datacenters = append(datacenters, m.Datacenter)
			pools = append(pools, m.Pool)
		}
		for _, p := range roster.Passwords {
			pools = append(pools, p.Pool)
			if p.Distro != WildcardDistro {
				distros = append(distros, p.Distro)
			}
		}

		distroIDs, err := normalize(tx, distros, func(id uint, n string) any { return &db.Distro{ID: id, Name: n} })
		if err != nil {
			return err
		}
		bitsIDs, err := normalize(tx, bitlengths, func(id uint, n string) any { return &db.Bitlength{ID: id, Name: n} })
		if err != nil {
			return err
		}
		purposeIDs, err := normalize(tx, purposes, func(id uint, n string) any { return &db.Purpose{ID: id, Name: n} })
		if err != nil {
			return err
		}
		dcIDs, err := normalize(tx, datacenters, func(id uint, n string) any { return &db.Datacenter{ID: id, Name: n} })
		if err != nil {
			return err
		}
		trustIDs, err := normalize(tx, trustlevels, func(id uint, n string) any { return &db.TrustLevel{ID: id, Name: n, Order: int(id)} })
		if err != nil {
			return err
		}
		envIDs, err := normalize(tx, environments, func(id uint, n string) any { return &db.Environment{ID: id, Name: n} })
		if err != nil {
			return err
		}
		poolIDs, err := normalize(tx, pools, func(id uint, n string) any { return &db.Pool{ID: id, Name: n} })
		if err != nil {
			return err
		}
		sum.Pools = len(poolIDs)

		if len(roster.Masters) > 0 {
			masters := make([]db.Master, 0, len(roster.Masters))
			for _, m := range roster.Masters {
				masters = append(masters, db.Master{
					Nickname:     m.Nickname,
					FQDN:         m.FQDN,
					HTTPPort:     m.HTTPPort,
					PBPort:       m.PBPort,
					DatacenterID: dcIDs[m.Datacenter],
					PoolID:       poolIDs[m.Pool],
				})
			}
			if err := tx.CreateInBatches(&masters, 100).Error; err != nil {
				return fmt.Errorf("failed to insert masters: %w", err)
			}
			sum.Masters = len(masters)
		}

		if len(roster.Slaves) > 0 {
			slaves := make([]db.Slave, 0, len(roster.Slaves))
			for _, s := range roster.Slaves {
				slaves = append(slaves, db.Slave{
					Name:          s.Name,
					DistroID:      distroIDs[s.Distro],
					BitlengthID:   bitsIDs[s.Bitlength],
					PurposeID:     purposeIDs[s.Purpose],
					DatacenterID:  dcIDs[s.Datacenter],
					TrustLevelID:  trustIDs[s.TrustLevel],
					EnvironmentID: envIDs[s.Environment],
					PoolID:        poolIDs[s.Pool],
					Basedir:       s.Basedir,
					Enabled:       true,
				})
			}
			if err := tx.CreateInBatches(&slaves, 100).Error; err != nil {
				return fmt.Errorf("failed to insert slaves: %w", err)
			}
			sum.Slaves = len(slaves)
		}

		for _, p := range roster.Passwords {
			row := db.SlavePassword{PoolID: poolIDs[p.Pool], Password: p.Password}
			if p.Distro != WildcardDistro {
				id := distroIDs[p.Distro]
				row.DistroID = &id
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert password for pool %s: %w", p.Pool, err)
			}
			sum.Passwords++
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	l := log.WithComponent("seed")
	l.Info().
		Int("slaves", sum.Slaves).
		Int("masters", sum.Masters).
		Int("passwords", sum.Passwords).
		Int("pools", sum.Pools).
		Msg("database initialized")
	return sum, nil
}

// normalize inserts one row per distinct name with ids 1..n in sorted
// name order and returns the name to id mapping.
func normalize(tx *gorm.DB, names []string, mk func(id uint, name string) any) (map[string]uint, error) {
	uniq := map[string]bool{}
	for _, n := range names {
		uniq[n] = true
	}
	sorted := make([]string, 0, len(uniq))
	for n := range uniq {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	ids := make(map[string]uint, len(sorted))
	for i, n := range sorted {
		id := uint(i + 1)
		if err := tx.Create(mk(id, n)).Error; err != nil {
			return nil, fmt.Errorf("failed to insert %q: %w", n, err)
		}
		ids[n] = id
	}
	return ids, nil
}
