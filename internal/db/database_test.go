package db_test

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseCreatesSchema(t *testing.T) {
	gdb := dbtest.New(t)
	for _, model := range db.AllModels() {
		assert.True(t, gdb.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestResetDropsData(t *testing.T) {
	f := dbtest.NewFixture(t)
	f.Master("bm01", "p1", "dc1")
	f.Slave("build-linux-01", "p1", "dc1")

	require.NoError(t, db.Reset(f.DB))

	var slaves, masters, pools int64
	require.NoError(t, f.DB.Model(&db.Slave{}).Count(&slaves).Error)
	require.NoError(t, f.DB.Model(&db.Master{}).Count(&masters).Error)
	require.NoError(t, f.DB.Model(&db.Pool{}).Count(&pools).Error)
	assert.Zero(t, slaves)
	assert.Zero(t, masters)
	assert.Zero(t, pools)
}

func TestDenormalizedSlaves(t *testing.T) {
	f := dbtest.NewFixture(t)
	m1 := f.Master("bm01", "p1", "dc1")
	m2 := f.Master("bm02", "p1", "dc2")
	s := f.Slave("build-linux-02", "p1", "dc1")
	f.SlaveWithDistro("build-win-01", "win2k3", "p1", "dc2")

	require.NoError(t, f.DB.Model(s).Updates(map[string]any{
		"current_master_id": m1.ID,
		"locked_master_id":  m2.ID,
	}).Error)

	rows, err := db.DenormalizedSlaves(context.Background(), f.DB)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	linux := rows[0]
	assert.Equal(t, "build-linux-02", linux.Name)
	assert.Equal(t, "centos", linux.Distro)
	assert.Equal(t, "64", linux.Bitlength)
	assert.Equal(t, "build", linux.Purpose)
	assert.Equal(t, "dc1", linux.Datacenter)
	assert.Equal(t, "core", linux.TrustLevel)
	assert.Equal(t, "prod", linux.Environment)
	assert.Equal(t, "p1", linux.Pool)
	assert.True(t, linux.Enabled)
	require.NotNil(t, linux.CurrentMaster)
	assert.Equal(t, "bm01", *linux.CurrentMaster)
	require.NotNil(t, linux.LockedMaster)
	assert.Equal(t, "bm02", *linux.LockedMaster)

	win := rows[1]
	assert.Equal(t, "win2k3", win.Distro)
	assert.Nil(t, win.CurrentMaster)
	assert.Nil(t, win.LockedMaster)
}

func TestDenormalizedMasters(t *testing.T) {
	f := dbtest.NewFixture(t)
	f.Master("bm02", "p2", "dc2")
	f.Master("bm01", "p1", "dc1")

	rows, err := db.DenormalizedMasters(context.Background(), f.DB)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, db.MasterView{
		Nickname:   "bm01",
		FQDN:       "bm01.build.example.com",
		HTTPPort:   8010,
		PBPort:     9010,
		Datacenter: "dc1",
		Pool:       "p1",
	}, rows[0])
	assert.Equal(t, "bm02", rows[1].Nickname)
}
