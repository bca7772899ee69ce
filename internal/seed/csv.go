package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SlaveRecord is one row of the slave roster.
type SlaveRecord struct {
	Name        string
	Distro      string
	Bitlength   string
	Purpose     string
	Datacenter  string
	TrustLevel  string
	Environment string
	Pool        string
	Basedir     string
}

// MasterRecord is one row of the master roster.
type MasterRecord struct {
	Nickname   string
	FQDN       string
	HTTPPort   int
	PBPort     int
	Datacenter string
	Pool       string
}

// PasswordRecord is one row of the password table. Distro "*" applies to
// every distro in the pool.
type PasswordRecord struct {
	Pool     string
	Distro   string
	Password string
}

// WildcardDistro marks a pool-wide password.
const WildcardDistro = "*"

var (
	slaveColumns    = []string{"name", "distro", "bitlength", "purpose", "datacenter", "trustlevel", "environment", "pool", "basedir"}
	masterColumns   = []string{"nickname", "fqdn", "http_port", "pb_port", "datacenter", "pool"}
	passwordColumns = []string{"pool", "distro", "password"}
)

// ReadSlaves parses a slave roster with a header row. Extra columns are
// ignored.
func ReadSlaves(r io.Reader) ([]SlaveRecord, error) {
	rows, err := readRows(r, slaveColumns)
	if err != nil {
		return nil, fmt.Errorf("slave data: %w", err)
	}
	out := make([]SlaveRecord, 0, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		rec := SlaveRecord{
			Name:        row["name"],
			Distro:      row["distro"],
			Bitlength:   row["bitlength"],
			Purpose:     row["purpose"],
			Datacenter:  row["datacenter"],
			TrustLevel:  row["trustlevel"],
			Environment: row["environment"],
			Pool:        row["pool"],
			Basedir:     row["basedir"],
		}
		if seen[rec.Name] {
			return nil, fmt.Errorf("slave data line %d: duplicate slave %q", i+2, rec.Name)
		}
		seen[rec.Name] = true
		out = append(out, rec)
	}
	return out, nil
}

// ReadMasters parses a master roster with a header row.
func ReadMasters(r io.Reader) ([]MasterRecord, error) {
	rows, err := readRows(r, masterColumns)
	if err != nil {
		return nil, fmt.Errorf("master data: %w", err)
	}
	out := make([]MasterRecord, 0, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		line := i + 2
		httpPort, err := strconv.Atoi(row["http_port"])
		if err != nil {
			return nil, fmt.Errorf("master data line %d: bad http_port: %w", line, err)
		}
		pbPort, err := strconv.Atoi(row["pb_port"])
		if err != nil {
			return nil, fmt.Errorf("master data line %d: bad pb_port: %w", line, err)
		}
		rec := MasterRecord{
			Nickname:   row["nickname"],
			FQDN:       row["fqdn"],
			HTTPPort:   httpPort,
			PBPort:     pbPort,
			Datacenter: row["datacenter"],
			Pool:       row["pool"],
		}
		if seen[rec.Nickname] {
			return nil, fmt.Errorf("master data line %d: duplicate master %q", line, rec.Nickname)
		}
		seen[rec.Nickname] = true
		out = append(out, rec)
	}
	return out, nil
}

// ReadPasswords parses the password table with a header row.
func ReadPasswords(r io.Reader) ([]PasswordRecord, error) {
	rows, err := readRows(r, passwordColumns)
	if err != nil {
		return nil, fmt.Errorf("password data: %w", err)
	}
	out := make([]PasswordRecord, 0, len(rows))
	seen := map[[2]string]bool{}
	for i, row := range rows {
		rec := PasswordRecord{Pool: row["pool"], Distro: row["distro"], Password: row["password"]}
		key := [2]string{rec.Pool, rec.Distro}
		if seen[key] {
			return nil, fmt.Errorf("password data line %d: duplicate password for pool %q distro %q", i+2, rec.Pool, rec.Distro)
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out, nil
}

// readRows returns each data row keyed by header name. Every required
// column must be present in the header and non-empty in every row.
func readRows(r io.Reader, required []string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []map[string]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(required))
		for _, col := range required {
			v := strings.TrimSpace(rec[index[col]])
			if v == "" {
				return nil, fmt.Errorf("line %d: empty %s", line, col)
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
