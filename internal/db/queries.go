package db

import (
	"context"

	"gorm.io/gorm"
)

// SlaveView is a slave row with reference ids replaced by names.
type SlaveView struct {
	Name          string  `json:"name" gorm:"column:name"`
	Distro        string  `json:"distro" gorm:"column:distro"`
	Bitlength     string  `json:"bitlength" gorm:"column:bitlength"`
	Purpose       string  `json:"purpose" gorm:"column:purpose"`
	Datacenter    string  `json:"datacenter" gorm:"column:datacenter"`
	TrustLevel    string  `json:"trustlevel" gorm:"column:trustlevel"`
	Environment   string  `json:"environment" gorm:"column:environment"`
	Pool          string  `json:"pool" gorm:"column:pool"`
	Basedir       string  `json:"basedir" gorm:"column:basedir"`
	Enabled       bool    `json:"enabled" gorm:"column:enabled"`
	CurrentMaster *string `json:"current_master" gorm:"column:current_master"`
	LockedMaster  *string `json:"locked_master" gorm:"column:locked_master"`
}

// MasterView is a master row with reference ids replaced by names.
type MasterView struct {
	Nickname   string `json:"nickname" gorm:"column:nickname"`
	FQDN       string `json:"fqdn" gorm:"column:fqdn"`
	HTTPPort   int    `json:"http_port" gorm:"column:http_port"`
	PBPort     int    `json:"pb_port" gorm:"column:pb_port"`
	Datacenter string `json:"datacenter" gorm:"column:datacenter"`
	Pool       string `json:"pool" gorm:"column:pool"`
}

// DenormalizedSlaves returns every slave ordered by name.
func DenormalizedSlaves(ctx context.Context, db *gorm.DB) ([]SlaveView, error) {
	rows := []SlaveView{}
	err := db.WithContext(ctx).Table("slaves").
		Select(`slaves.name AS name,
			distros.name AS distro,
			bitlengths.name AS bitlength,
			purposes.name AS purpose,
			datacenters.name AS datacenter,
			trustlevels.name AS trustlevel,
			environments.name AS environment,
			pools.name AS pool,
			slaves.basedir AS basedir,
			slaves.enabled AS enabled,
			cur.nickname AS current_master,
			lck.nickname AS locked_master`).
		Joins("JOIN distros ON distros.id = slaves.distro_id").
		Joins("JOIN bitlengths ON bitlengths.id = slaves.bitlength_id").
		Joins("JOIN purposes ON purposes.id = slaves.purpose_id").
		Joins("JOIN datacenters ON datacenters.id = slaves.datacenter_id").
		Joins("JOIN trustlevels ON trustlevels.id = slaves.trustlevel_id").
		Joins("JOIN environments ON environments.id = slaves.environment_id").
		Joins("JOIN pools ON pools.id = slaves.pool_id").
		Joins("LEFT JOIN masters AS cur ON cur.id = slaves.current_master_id").
		Joins("LEFT JOIN masters AS lck ON lck.id = slaves.locked_master_id").
		Where("slaves.deleted_at IS NULL").
		Order("slaves.name").
		Scan(&rows).Error
	return rows, err
}

// DenormalizedMasters returns every master ordered by nickname.
func DenormalizedMasters(ctx context.Context, db *gorm.DB) ([]MasterView, error) {
	rows := []MasterView{}
	err := db.WithContext(ctx).Table("masters").
		Select(`masters.nickname AS nickname,
			masters.fqdn AS fqdn,
			masters.http_port AS http_port,
			masters.pb_port AS pb_port,
			datacenters.name AS datacenter,
			pools.name AS pool`).
		Joins("JOIN datacenters ON datacenters.id = masters.datacenter_id").
		Joins("JOIN pools ON pools.id = masters.pool_id").
		Where("masters.deleted_at IS NULL").
		Order("masters.nickname").
		Scan(&rows).Error
	return rows, err
}
