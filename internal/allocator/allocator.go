// Package allocator decides which master each slave connects to and
// records that decision.
//
// Work for one slave name is serialized with an in-process lock held across
// a single database transaction (read classification, resolve master, write
// current_master_id). Different slave names do not wait on each other's
// locks.
package allocator

import (
	"context"
	"errors"
	"time"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/log"
	"github.com/atvirokodosprendimai/slavealloc/internal/messaging"
	"github.com/atvirokodosprendimai/slavealloc/internal/metrics"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Allocation is everything a slave needs to connect to its master. A value
// with Enabled false is the disabled marker and carries no master fields.
type Allocation struct {
	SlaveName string
	Enabled   bool
	Basedir   string
	Password  string

	MasterID       uint
	MasterNickname string
	MasterFQDN     string
	MasterHTTPPort int
	MasterPBPort   int
	MasterPoolID   uint

	// Locked is set when the master came from the slave's lock rather than
	// from selection.
	Locked      bool
	TacTemplate string
}

// Disabled reports whether a is the disabled marker.
func (a *Allocation) Disabled() bool { return !a.Enabled }

// Publisher receives committed allocations.
type Publisher interface {
	PublishAllocation(messaging.AllocationEvent) error
}

// Allocator resolves and commits slave allocations against the store.
type Allocator struct {
	db        *gorm.DB
	locks     *keyLock
	publisher Publisher
	log       zerolog.Logger
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithPublisher announces every committed allocation on p.
func WithPublisher(p Publisher) Option {
	return func(a *Allocator) { a.publisher = p }
}

// New creates an allocator over an open store.
func New(gdb *gorm.DB, opts ...Option) *Allocator {
	a := &Allocator{
		db:    gdb,
		locks: newKeyLock(),
		log:   log.WithComponent("allocator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate resolves a master for slaveName and records it as the slave's
// current master.
func (a *Allocator) Allocate(ctx context.Context, slaveName string) (*Allocation, error) {
	return a.run(ctx, slaveName, true)
}

// Resolve computes the allocation Allocate would make without writing it.
func (a *Allocator) Resolve(ctx context.Context, slaveName string) (*Allocation, error) {
	return a.run(ctx, slaveName, false)
}

func (a *Allocator) run(ctx context.Context, slaveName string, commit bool) (*Allocation, error) {
	start := time.Now()
	unlock := a.locks.Lock(slaveName)
	defer unlock()

	var alloc *Allocation
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		alloc, err = resolve(ctx, tx, slaveName)
		if err != nil || !commit || alloc.Disabled() {
			return err
		}
		err = tx.Model(&db.Slave{}).
			Where("name = ?", slaveName).
			Update("current_master_id", alloc.MasterID).Error
		return storeErr("commit allocation", err)
	})

	var (
		unknown *UnknownSlaveError
		none    *NoAllocationError
	)
	switch {
	case errors.As(err, &unknown):
		metrics.ObserveAllocation(metrics.ResultUnknownSlave, start)
		a.log.Warn().Str("slave", slaveName).Msg("rejecting unknown slave")
		return nil, err
	case errors.As(err, &none):
		metrics.ObserveAllocation(metrics.ResultNoAllocation, start)
		a.log.Warn().Str("slave", slaveName).Msg("rejecting slave: no eligible master")
		return nil, err
	case err != nil:
		metrics.ObserveAllocation(metrics.ResultError, start)
		a.log.Error().Err(err).Str("slave", slaveName).Msg("allocation failed")
		var se *StoreError
		if !errors.As(err, &se) {
			err = &StoreError{Op: "allocation transaction", Err: err}
		}
		return nil, err
	}

	if alloc.Disabled() {
		metrics.ObserveAllocation(metrics.ResultDisabled, start)
		a.log.Info().Str("slave", slaveName).Msg("slave is disabled; no allocation made")
		return alloc, nil
	}

	if !commit {
		a.log.Debug().Str("slave", slaveName).Str("master", alloc.MasterNickname).Msg("resolved allocation without commit")
		return alloc, nil
	}

	metrics.ObserveAllocation(metrics.ResultAllocated, start)
	a.log.Info().
		Str("slave", slaveName).
		Str("master", alloc.MasterNickname).
		Str("fqdn", alloc.MasterFQDN).
		Int("port", alloc.MasterPBPort).
		Bool("locked", alloc.Locked).
		Msg("allocated slave")
	a.publish(alloc)
	return alloc, nil
}

func (a *Allocator) publish(alloc *Allocation) {
	if a.publisher == nil {
		return
	}
	ev := messaging.NewAllocationEvent(alloc.SlaveName, alloc.MasterNickname,
		alloc.MasterFQDN, alloc.MasterPBPort, alloc.Locked)
	if err := a.publisher.PublishAllocation(ev); err != nil {
		a.log.Error().Err(err).Str("slave", alloc.SlaveName).Msg("failed to publish allocation event")
	}
}

// resolve reads the slave and picks its master inside tx.
func resolve(ctx context.Context, tx *gorm.DB, slaveName string) (*Allocation, error) {
	var slave db.Slave
	err := tx.Where("name = ?", slaveName).First(&slave).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &UnknownSlaveError{Name: slaveName}
	}
	if err != nil {
		return nil, storeErr("load slave", err)
	}

	if !slave.Enabled {
		return &Allocation{SlaveName: slave.Name}, nil
	}

	var master db.Master
	locked := slave.LockedMasterID != nil
	if locked {
		err := tx.First(&master, *slave.LockedMasterID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NoAllocationError{Slave: slaveName}
		}
		if err != nil {
			return nil, storeErr("load locked master", err)
		}
	} else {
		candidates, err := BestMasters(ctx, tx, SiloOf(&slave))
		if err != nil {
			return nil, storeErr("select master", err)
		}
		if len(candidates) == 0 {
			return nil, &NoAllocationError{Slave: slaveName}
		}
		master = candidates[0]
	}

	password, err := slavePassword(tx, slave.PoolID, slave.DistroID)
	if err != nil {
		return nil, storeErr("load slave password", err)
	}

	return &Allocation{
		SlaveName:      slave.Name,
		Enabled:        true,
		Basedir:        slave.Basedir,
		Password:       password,
		MasterID:       master.ID,
		MasterNickname: master.Nickname,
		MasterFQDN:     master.FQDN,
		MasterHTTPPort: master.HTTPPort,
		MasterPBPort:   master.PBPort,
		MasterPoolID:   master.PoolID,
		Locked:         locked,
		TacTemplate:    master.TacTemplate,
	}, nil
}

// slavePassword prefers the (pool, distro) password over the pool-wide
// wildcard. No matching row yields an empty password.
func slavePassword(tx *gorm.DB, poolID, distroID uint) (string, error) {
	var rows []db.SlavePassword
	err := tx.Where("pool_id = ? AND (distro_id = ? OR distro_id IS NULL)", poolID, distroID).
		Order("distro_id IS NULL").
		Order("id").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return "", err
	}
	return rows[0].Password, nil
}
