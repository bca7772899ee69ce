package allocator

import (
	"context"
	"errors"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"gorm.io/gorm"
)

// Lock pins slaveName to the master with the given nickname. Selection is
// bypassed for the slave until Unlock.
func (a *Allocator) Lock(ctx context.Context, slaveName, nickname string) (*db.Master, error) {
	unlock := a.locks.Lock(slaveName)
	defer unlock()

	var master db.Master
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findMaster(tx, nickname, &master); err != nil {
			return err
		}
		return updateSlave(tx, slaveName, "locked_master_id", master.ID)
	})
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("slave", slaveName).Str("master", master.Nickname).Msg("locked slave")
	return &master, nil
}

// Unlock clears any lock on slaveName.
func (a *Allocator) Unlock(ctx context.Context, slaveName string) error {
	unlock := a.locks.Lock(slaveName)
	defer unlock()

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateSlave(tx, slaveName, "locked_master_id", nil)
	})
	if err != nil {
		return err
	}
	a.log.Info().Str("slave", slaveName).Msg("unlocked slave")
	return nil
}

// SetEnabled sets the enabled flag of slaveName. It reports false without
// writing when the slave is already in the requested state.
func (a *Allocator) SetEnabled(ctx context.Context, slaveName string, enabled bool) (bool, error) {
	unlock := a.locks.Lock(slaveName)
	defer unlock()

	changed := false
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slave db.Slave
		if err := findSlave(tx, slaveName, &slave); err != nil {
			return err
		}
		if slave.Enabled == enabled {
			return nil
		}
		changed = true
		return storeErr("update slave", tx.Model(&slave).Update("enabled", enabled).Error)
	})
	if err != nil {
		return false, err
	}
	if changed {
		a.log.Info().Str("slave", slaveName).Bool("enabled", enabled).Msg("changed slave state")
	}
	return changed, nil
}

// SetMasterTemplate stores a tac body override for a master. An empty
// template restores the built-in body.
func (a *Allocator) SetMasterTemplate(ctx context.Context, nickname, tmpl string) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var master db.Master
		if err := findMaster(tx, nickname, &master); err != nil {
			return err
		}
		return storeErr("update master", tx.Model(&master).Update("tac_template", tmpl).Error)
	})
}

func findSlave(tx *gorm.DB, name string, slave *db.Slave) error {
	err := tx.Where("name = ?", name).First(slave).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &UnknownSlaveError{Name: name}
	}
	return storeErr("load slave", err)
}

func findMaster(tx *gorm.DB, nickname string, master *db.Master) error {
	err := tx.Where("nickname = ?", nickname).First(master).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &UnknownMasterError{Nickname: nickname}
	}
	return storeErr("load master", err)
}

func updateSlave(tx *gorm.DB, name, column string, value any) error {
	res := tx.Model(&db.Slave{}).Where("name = ?", name).Update(column, value)
	if res.Error != nil {
		return storeErr("update slave", res.Error)
	}
	if res.RowsAffected == 0 {
		return &UnknownSlaveError{Name: name}
	}
	return nil
}
