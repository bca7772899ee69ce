package report

import (
	"bytes"
	"testing"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slave(name, distro, dc, pool string) db.SlaveView {
	return db.SlaveView{
		Name: name, Distro: distro, Bitlength: "64", Purpose: "build",
		Datacenter: dc, TrustLevel: "core", Environment: "prod", Pool: pool,
	}
}

var fleet = []db.SlaveView{
	slave("s1", "centos", "scl1", "p1"),
	slave("s2", "centos", "scl1", "p1"),
	slave("s3", "win2k3", "mtv1", "p2"),
	slave("s4", "centos", "mtv1", "p1"),
	slave("s5", "centos", "scl1", "p1"),
}

func TestParseColumns(t *testing.T) {
	cols, err := ParseColumns(" distro, pool ", SiloKeys)
	require.NoError(t, err)
	assert.Equal(t, []string{"distro", "pool"}, cols)

	cols, err = ParseColumns("", SiloKeys)
	require.NoError(t, err)
	assert.Nil(t, cols)

	_, err = ParseColumns("distro,size,color", SiloKeys)
	assert.EqualError(t, err, "unrecognized columns: size color")
}

func TestSilosDefaultSort(t *testing.T) {
	table, err := Silos(fleet, []string{"distro", "datacenter"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"distro", "dc", "count"}, table.Titles)
	assert.Equal(t, [][]string{
		{"centos", "mtv1", "1"},
		{"centos", "scl1", "3"},
		{"win2k3", "mtv1", "1"},
	}, table.Rows)
}

func TestSilosSortByCount(t *testing.T) {
	table, err := Silos(fleet, []string{"pool"}, []string{"count"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"p2", "1"}, {"p1", "4"}}, table.Rows)

	_, err = Silos(fleet, []string{"pool"}, []string{"distro"})
	assert.Error(t, err, "sort key must be a selected column or count")
}

func TestSilosAllColumns(t *testing.T) {
	table, err := Silos(fleet, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"environment", "purpose", "distro", "bits", "dc", "trustlevel", "pool", "count"}, table.Titles)
	assert.Len(t, table.Rows, 3)
}

func TestPools(t *testing.T) {
	masters := []db.MasterView{
		{Nickname: "bm01", Pool: "p1"},
		{Nickname: "bm02", Pool: "p1"},
		{Nickname: "bm03", Pool: "p3"},
	}
	table := Pools(fleet, masters, nil)
	assert.Equal(t, PoolKeys, table.Titles)
	assert.Equal(t, [][]string{
		{"p1", "2", "4", "bm01 bm02"},
		{"p2", "0", "1", ""},
		{"p3", "1", "0", "bm03"},
	}, table.Rows)

	table = Pools(fleet, masters, []string{"nslaves", "pool"})
	assert.Equal(t, []string{"4", "p1"}, table.Rows[0])
}

func TestWriters(t *testing.T) {
	table := Table{Titles: []string{"pool", "count"}, Rows: [][]string{{"build-scl1", "12"}, {"p2", "3"}}}

	var text bytes.Buffer
	require.NoError(t, WriteText(&text, table))
	assert.Equal(t, "pool       count\nbuild-scl1 12\np2         3\n", text.String())

	var csvOut bytes.Buffer
	require.NoError(t, WriteCSV(&csvOut, table))
	assert.Equal(t, "pool,count\nbuild-scl1,12\np2,3\n", csvOut.String())
}
