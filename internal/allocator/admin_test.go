package allocator

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAndUnlock(t *testing.T) {
	ctx := context.Background()
	f := dbtest.NewFixture(t)
	m := f.Master("bm02", "p1", "dc2")
	f.Slave("build-linux-01", "p1", "dc1")
	a := New(f.DB)

	got, err := a.Lock(ctx, "build-linux-01", "bm02")
	require.NoError(t, err)
	assert.Equal(t, "bm02", got.Nickname)
	require.NotNil(t, f.Reload("build-linux-01").LockedMasterID)
	assert.Equal(t, m.ID, *f.Reload("build-linux-01").LockedMasterID)

	require.NoError(t, a.Unlock(ctx, "build-linux-01"))
	assert.Nil(t, f.Reload("build-linux-01").LockedMasterID)
	assert.Nil(t, f.Reload("build-linux-01").CurrentMasterID, "lock commands never touch current master")
}

func TestLockErrors(t *testing.T) {
	ctx := context.Background()
	f := dbtest.NewFixture(t)
	f.Master("bm01", "p1", "dc1")
	f.Slave("build-linux-01", "p1", "dc1")
	a := New(f.DB)

	_, err := a.Lock(ctx, "build-linux-01", "nope")
	var unknownMaster *UnknownMasterError
	require.ErrorAs(t, err, &unknownMaster)
	assert.Equal(t, "nope", unknownMaster.Nickname)
	assert.Nil(t, f.Reload("build-linux-01").LockedMasterID)

	_, err = a.Lock(ctx, "ghost", "bm01")
	var unknownSlave *UnknownSlaveError
	require.ErrorAs(t, err, &unknownSlave)
	assert.Equal(t, "ghost", unknownSlave.Name)

	err = a.Unlock(ctx, "ghost")
	assert.ErrorAs(t, err, &unknownSlave)
}

func TestSetEnabled(t *testing.T) {
	ctx := context.Background()
	f := dbtest.NewFixture(t)
	f.Slave("build-linux-01", "p1", "dc1")
	a := New(f.DB)

	steps := []struct {
		enabled     bool
		wantChanged bool
	}{
		{true, false},
		{false, true},
		{false, false},
		{true, true},
	}
	for _, step := range steps {
		changed, err := a.SetEnabled(ctx, "build-linux-01", step.enabled)
		require.NoError(t, err)
		assert.Equal(t, step.wantChanged, changed)
		assert.Equal(t, step.enabled, f.Reload("build-linux-01").Enabled)
	}

	_, err := a.SetEnabled(ctx, "ghost", false)
	var unknown *UnknownSlaveError
	assert.ErrorAs(t, err, &unknown)
}

func TestSetMasterTemplate(t *testing.T) {
	ctx := context.Background()
	f := dbtest.NewFixture(t)
	f.Master("bm01", "p1", "dc1")
	a := New(f.DB)

	require.NoError(t, a.SetMasterTemplate(ctx, "bm01", "body {{.SlaveName}}"))
	var m db.Master
	require.NoError(t, f.DB.Where("nickname = ?", "bm01").First(&m).Error)
	assert.Equal(t, "body {{.SlaveName}}", m.TacTemplate)

	require.NoError(t, a.SetMasterTemplate(ctx, "bm01", ""))
	require.NoError(t, f.DB.Where("nickname = ?", "bm01").First(&m).Error)
	assert.Empty(t, m.TacTemplate)

	err := a.SetMasterTemplate(ctx, "nope", "x")
	var unknown *UnknownMasterError
	assert.ErrorAs(t, err, &unknown)
}
