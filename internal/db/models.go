package db

import (
	"gorm.io/gorm"
)

// Distro is an operating system family a slave runs, e.g. "centos" or "win2k3".
type Distro struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Distro) TableName() string { return "distros" }

// Bitlength is a slave's word size ("32" or "64").
type Bitlength struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Bitlength) TableName() string { return "bitlengths" }

// Purpose is what a slave builds for, e.g. "build" or "tests".
type Purpose struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Purpose) TableName() string { return "purposes" }

// Datacenter is the physical location of a slave or master.
type Datacenter struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Datacenter) TableName() string { return "datacenters" }

// TrustLevel is a security classification. Higher Order is more restricted.
type TrustLevel struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"uniqueIndex;not null"`
	Order int    `gorm:"column:sort_order;not null"`
}

func (TrustLevel) TableName() string { return "trustlevels" }

// Environment separates production, staging and development fleets.
type Environment struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Environment) TableName() string { return "environments" }

// Pool is the hard partition scoping which masters a slave may be given.
type Pool struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Pool) TableName() string { return "pools" }

// Slave is a build-execution host. CurrentMasterID is owned by the
// allocator; LockedMasterID is owned by operators.
type Slave struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;not null"`

	DistroID      uint `gorm:"column:distro_id;not null;index"`
	BitlengthID   uint `gorm:"column:bitlength_id;not null"`
	PurposeID     uint `gorm:"column:purpose_id;not null"`
	DatacenterID  uint `gorm:"column:datacenter_id;not null"`
	TrustLevelID  uint `gorm:"column:trustlevel_id;not null"`
	EnvironmentID uint `gorm:"column:environment_id;not null"`
	PoolID        uint `gorm:"column:pool_id;not null;index"`

	Basedir string `gorm:"not null"`
	// Enabled has no column default: gorm would skip an explicit false on
	// insert and apply it. Callers always set it.
	Enabled bool `gorm:"not null"`

	LockedMasterID  *uint `gorm:"column:locked_master_id"`
	CurrentMasterID *uint `gorm:"column:current_master_id"`
}

func (Slave) TableName() string { return "slaves" }

// Master is a build controller slaves connect to.
type Master struct {
	gorm.Model
	Nickname     string `gorm:"uniqueIndex;not null"`
	FQDN         string `gorm:"column:fqdn;not null"`
	HTTPPort     int    `gorm:"column:http_port;not null"`
	PBPort       int    `gorm:"column:pb_port;not null"`
	DatacenterID uint   `gorm:"column:datacenter_id;not null"`
	PoolID       uint   `gorm:"column:pool_id;not null;index"`
	// TacTemplate replaces the rendered tac body when non-empty.
	TacTemplate string `gorm:"column:tac_template"`
}

func (Master) TableName() string { return "masters" }

// SlavePassword is the secret for slaves of a pool. A nil DistroID is the
// pool-wide wildcard.
type SlavePassword struct {
	ID       uint   `gorm:"primaryKey"`
	PoolID   uint   `gorm:"column:pool_id;not null;uniqueIndex:idx_slave_passwords_pool_distro"`
	DistroID *uint  `gorm:"column:distro_id;uniqueIndex:idx_slave_passwords_pool_distro"`
	Password string `gorm:"not null"`
}

func (SlavePassword) TableName() string { return "slave_passwords" }

// AllModels lists every table in dependency order.
func AllModels() []any {
	return []any{
		&Distro{},
		&Bitlength{},
		&Purpose{},
		&Datacenter{},
		&TrustLevel{},
		&Environment{},
		&Pool{},
		&Master{},
		&Slave{},
		&SlavePassword{},
	}
}
