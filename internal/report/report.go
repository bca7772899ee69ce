// Package report aggregates slaves and masters for the silos and pools
// operator commands.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/atvirokodosprendimai/slavealloc/internal/db"
)

// SiloKeys are the classification columns silos can group by.
var SiloKeys = []string{"environment", "purpose", "distro", "bitlength", "datacenter", "trustlevel", "pool"}

// PoolKeys are the columns the pools report can show.
var PoolKeys = []string{"pool", "nmasters", "nslaves", "masters"}

const countKey = "count"

var shortTitles = map[string]string{"datacenter": "dc", "bitlength": "bits"}

// Table is a rendered report: column titles plus rows of cells.
type Table struct {
	Titles []string
	Rows   [][]string
}

// ParseColumns splits a comma separated list and checks every entry is in
// allowed. An empty list yields nil.
func ParseColumns(list string, allowed []string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	ok := map[string]bool{}
	for _, a := range allowed {
		ok[a] = true
	}
	var cols, bad []string
	for _, c := range strings.Split(list, ",") {
		c = strings.TrimSpace(c)
		if !ok[c] {
			bad = append(bad, c)
			continue
		}
		cols = append(cols, c)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("unrecognized columns: %s", strings.Join(bad, " "))
	}
	return cols, nil
}

// Silos counts slaves per distinct combination of columns and orders the
// result by sortKeys, which may name any of columns plus "count". Empty
// sortKeys sorts by columns.
func Silos(slaves []db.SlaveView, columns, sortKeys []string) (Table, error) {
	if len(columns) == 0 {
		columns = SiloKeys
	}
	if len(sortKeys) == 0 {
		sortKeys = columns
	}
	titles := append(append([]string{}, columns...), countKey)
	sortIdx := make([]int, 0, len(sortKeys))
	for _, k := range sortKeys {
		i := slices.Index(titles, k)
		if i < 0 {
			return Table{}, fmt.Errorf("sort keys not available: %s", k)
		}
		sortIdx = append(sortIdx, i)
	}

	counts := map[string]int{}
	keys := map[string][]string{}
	for _, s := range slaves {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = siloField(s, c)
		}
		k := strings.Join(row, "\x00")
		counts[k]++
		keys[k] = row
	}

	rows := make([][]string, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, append(keys[k], strconv.Itoa(n)))
	}
	countIdx := len(titles) - 1
	sort.SliceStable(rows, func(a, b int) bool {
		for _, i := range sortIdx {
			if rows[a][i] == rows[b][i] {
				continue
			}
			if i == countIdx {
				x, _ := strconv.Atoi(rows[a][i])
				y, _ := strconv.Atoi(rows[b][i])
				return x < y
			}
			return rows[a][i] < rows[b][i]
		}
		return false
	})

	for i, t := range titles {
		if short, ok := shortTitles[t]; ok {
			titles[i] = short
		}
	}
	return Table{Titles: titles, Rows: rows}, nil
}

// Pools summarizes masters and slaves per pool, ordered by pool name.
func Pools(slaves []db.SlaveView, masters []db.MasterView, columns []string) Table {
	if len(columns) == 0 {
		columns = PoolKeys
	}
	type poolInfo struct {
		masters []string
		nslaves int
	}
	pools := map[string]*poolInfo{}
	get := func(name string) *poolInfo {
		p, ok := pools[name]
		if !ok {
			p = &poolInfo{}
			pools[name] = p
		}
		return p
	}
	for _, m := range masters {
		p := get(m.Pool)
		p.masters = append(p.masters, m.Nickname)
	}
	for _, s := range slaves {
		get(s.Pool).nslaves++
	}

	names := make([]string, 0, len(pools))
	for n := range pools {
		names = append(names, n)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, n := range names {
		p := pools[n]
		row := make([]string, 0, len(columns))
		for _, c := range columns {
			switch c {
			case "pool":
				row = append(row, n)
			case "nmasters":
				row = append(row, strconv.Itoa(len(p.masters)))
			case "nslaves":
				row = append(row, strconv.Itoa(p.nslaves))
			case "masters":
				row = append(row, strings.Join(p.masters, " "))
			}
		}
		rows = append(rows, row)
	}
	return Table{Titles: append([]string{}, columns...), Rows: rows}
}

// WriteText writes t as left-aligned, space separated columns.
func WriteText(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Titles, "\t"))
	for _, r := range t.Rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Titles); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func siloField(s db.SlaveView, column string) string {
	switch column {
	case "environment":
		return s.Environment
	case "purpose":
		return s.Purpose
	case "distro":
		return s.Distro
	case "bitlength":
		return s.Bitlength
	case "datacenter":
		return s.Datacenter
	case "trustlevel":
		return s.TrustLevel
	case "pool":
		return s.Pool
	}
	return ""
}
