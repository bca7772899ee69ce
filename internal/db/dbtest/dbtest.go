// Package dbtest opens throwaway sqlite stores for tests and seeds them
// with small topologies.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New opens a migrated store in a per-test temporary directory.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := db.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// Fixture creates reference rows on demand so tests only name what they
// care about.
type Fixture struct {
	t  testing.TB
	DB *gorm.DB
}

// NewFixture wraps a fresh store.
func NewFixture(t testing.TB) *Fixture {
	return &Fixture{t: t, DB: New(t)}
}

func firstOrCreate[T any](t testing.TB, gdb *gorm.DB, row *T, name string) {
	t.Helper()
	require.NoError(t, gdb.Where("name = ?", name).FirstOrCreate(row).Error)
}

func (f *Fixture) Distro(name string) uint {
	row := db.Distro{Name: name}
	firstOrCreate(f.t, f.DB, &row, name)
	return row.ID
}

func (f *Fixture) Bitlength(name string) uint {
	row := db.Bitlength{Name: name}
	firstOrCreate(f.t, f.DB, &row, name)
	return row.ID
}

func (f *Fixture) Purpose(name string) uint {
	row := db.Purpose{Name: name}
	firstOrCreate(f.t, f.DB, &row, name)
	return row.ID
}

func (f *Fixture) Datacenter(name string) uint {
	row := db.Datacenter{Name: name}
	firstOrCreate(f.t, f.DB, &row, name)
	return row.ID
}

func (f *Fixture) TrustLevel(name string) uint {
	row := db.TrustLevel{Name: name}
	firstOrCreate(f.t, f.DB, &row, name)
	return row.ID
}

func (f *Fixture) Environment(name string) uint {
	row := db.Environment{Name: name}
	firstOrCreate(f.t, f.DB, &row, name)
	return row.ID
}

func (f *Fixture) Pool(name string) uint {
	row := db.Pool{Name: name}
	firstOrCreate(f.t, f.DB, &row, name)
	return row.ID
}

// Master creates a master listening on 8010/9010.
func (f *Fixture) Master(nickname, pool, datacenter string) *db.Master {
	f.t.Helper()
	m := &db.Master{
		Nickname:     nickname,
		FQDN:         nickname + ".build.example.com",
		HTTPPort:     8010,
		PBPort:       9010,
		DatacenterID: f.Datacenter(datacenter),
		PoolID:       f.Pool(pool),
	}
	require.NoError(f.t, f.DB.Create(m).Error)
	return m
}

// Slave creates an enabled slave classified as centos/64/build/core/prod.
func (f *Fixture) Slave(name, pool, datacenter string) *db.Slave {
	return f.SlaveWithDistro(name, "centos", pool, datacenter)
}

func (f *Fixture) SlaveWithDistro(name, distro, pool, datacenter string) *db.Slave {
	f.t.Helper()
	s := &db.Slave{
		Name:          name,
		DistroID:      f.Distro(distro),
		BitlengthID:   f.Bitlength("64"),
		PurposeID:     f.Purpose("build"),
		DatacenterID:  f.Datacenter(datacenter),
		TrustLevelID:  f.TrustLevel("core"),
		EnvironmentID: f.Environment("prod"),
		PoolID:        f.Pool(pool),
		Basedir:       "/builds/slave",
		Enabled:       true,
	}
	require.NoError(f.t, f.DB.Create(s).Error)
	return s
}

// Password stores a pool password; distro "*" is the wildcard.
func (f *Fixture) Password(pool, distro, password string) {
	f.t.Helper()
	row := db.SlavePassword{PoolID: f.Pool(pool), Password: password}
	if distro != "*" {
		id := f.Distro(distro)
		row.DistroID = &id
	}
	require.NoError(f.t, f.DB.Create(&row).Error)
}

// Reload fetches the current state of a slave by name.
func (f *Fixture) Reload(name string) *db.Slave {
	f.t.Helper()
	var s db.Slave
	require.NoError(f.t, f.DB.Where("name = ?", name).First(&s).Error)
	return &s
}
