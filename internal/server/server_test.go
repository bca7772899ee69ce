package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/slavealloc/internal/allocator"
	"github.com/atvirokodosprendimai/slavealloc/internal/db"
	"github.com/atvirokodosprendimai/slavealloc/internal/db/dbtest"
	"github.com/atvirokodosprendimai/slavealloc/internal/tac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*dbtest.Fixture, *httptest.Server) {
	t.Helper()
	f := dbtest.NewFixture(t)
	renderer := &tac.Renderer{Now: time.Now, Host: "test"}
	srv := httptest.NewServer(NewRouter(f.DB, allocator.New(f.DB), renderer))
	t.Cleanup(srv.Close)
	return f, srv
}

func get(t *testing.T, url string) (int, string, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestGetTac(t *testing.T) {
	f, srv := newTestServer(t)
	m := f.Master("bm01", "p1", "dc1")
	f.Slave("build-linux-07", "p1", "dc1")

	code, ctype, body := get(t, srv.URL+"/build-linux-07")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "text/plain", ctype)
	assert.Contains(t, body, "buildmaster_host = 'bm01.build.example.com'\n")
	assert.Contains(t, body, "slavename = 'build-linux-07'\n")

	current := f.Reload("build-linux-07").CurrentMasterID
	require.NotNil(t, current)
	assert.Equal(t, m.ID, *current)
}

func TestGetTacDisabled(t *testing.T) {
	f, srv := newTestServer(t)
	s := f.Slave("build-linux-07", "p1", "dc1")
	require.NoError(t, f.DB.Model(s).Update("enabled", false).Error)

	code, _, body := get(t, srv.URL+"/build-linux-07")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "SLAVE DISABLED")
	assert.NotContains(t, body, "buildmaster_host")
}

func TestGetTacErrors(t *testing.T) {
	f, srv := newTestServer(t)
	f.Slave("build-linux-08", "p2", "dc1")

	tests := []struct {
		slave string
		want  string
	}{
		{"ghost", "no slave found named 'ghost'"},
		{"build-linux-08", "no eligible master for slave 'build-linux-08'"},
	}
	for _, tt := range tests {
		code, ctype, body := get(t, srv.URL+"/"+tt.slave)
		assert.Equal(t, http.StatusInternalServerError, code, tt.slave)
		assert.Equal(t, "text/plain", ctype)
		assert.Equal(t, "error processing request: "+tt.want+"\n", body)
	}
}

type blockingAllocator struct {
	release chan struct{}
	entered chan string
}

func (b *blockingAllocator) Allocate(ctx context.Context, name string) (*allocator.Allocation, error) {
	b.entered <- name
	if name == "slow" {
		<-b.release
	}
	return nil, errors.New("stub")
}

func TestUnrelatedRequestsDoNotBlock(t *testing.T) {
	gdb := dbtest.New(t)
	stub := &blockingAllocator{release: make(chan struct{}), entered: make(chan string, 2)}
	srv := httptest.NewServer(NewRouter(gdb, stub, tac.NewRenderer()))
	defer srv.Close()
	defer close(stub.release)

	go http.Get(srv.URL + "/slow")
	require.Equal(t, "slow", <-stub.entered)

	done := make(chan int, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/fast")
		if err == nil {
			resp.Body.Close()
			done <- resp.StatusCode
		}
	}()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusInternalServerError, code)
	case <-time.After(2 * time.Second):
		t.Fatal("request for another slave was blocked")
	}
}

func TestAPISlavesAndMasters(t *testing.T) {
	f, srv := newTestServer(t)
	f.Master("bm01", "p1", "dc1")
	f.Slave("build-linux-07", "p1", "dc1")

	code, ctype, body := get(t, srv.URL+"/api/slaves")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "application/json", ctype)
	var slaves []db.SlaveView
	require.NoError(t, json.Unmarshal([]byte(body), &slaves))
	require.Len(t, slaves, 1)
	assert.Equal(t, "build-linux-07", slaves[0].Name)
	assert.Equal(t, "p1", slaves[0].Pool)

	code, _, body = get(t, srv.URL+"/api/masters")
	assert.Equal(t, http.StatusOK, code)
	var masters []db.MasterView
	require.NoError(t, json.Unmarshal([]byte(body), &masters))
	require.Len(t, masters, 1)
	assert.Equal(t, "bm01", masters[0].Nickname)
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)

	code, _, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	code, _, _ = get(t, srv.URL+"/ghost")
	assert.Equal(t, http.StatusInternalServerError, code)

	code, _, body = get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "slavealloc_http_requests_total")
}
