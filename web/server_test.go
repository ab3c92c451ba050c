package web

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sugawarayuuta/sonnet"

	"github.com/mogaika/vif1emu/ps2/vif1"
	"github.com/mogaika/vif1emu/states"
	"github.com/mogaika/vif1emu/status"
)

type testUnit struct {
	regs  vif1.Registers
	stats vif1.Stats
	fault error

	mu     sync.Mutex
	resets int
	kicks  int
}

func (u *testUnit) counters() (int, int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.resets, u.kicks, u.fault
}

func (u *testUnit) Registers() (vif1.Registers, error) { return u.regs, nil }
func (u *testUnit) Stats() (vif1.Stats, error)         { return u.stats, nil }

func (u *testUnit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fault
}

func (u *testUnit) Kick() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.kicks++
}

func (u *testUnit) Reset() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.resets++
	u.fault = nil
	return nil
}

func (u *testUnit) SaveState(w states.Writer) error {
	f := states.NewRegisterFile("vpu/vif1_1.yaml")
	f.SetRegister32("BASE", u.regs.BASE)
	return w.InsertFile(f)
}

func get(t *testing.T, srv *httptest.Server, path string) []byte {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: %s %s", path, resp.Status, data)
	}
	return data
}

func post(srv *httptest.Server, path, body string) (int, []byte, error) {
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func newTestServer(u *testUnit, b *status.Broadcaster) *httptest.Server {
	return httptest.NewServer(NewServer(u, b).Router())
}

func TestJsonEndpoints(t *testing.T) {
	u := &testUnit{}
	u.regs.BASE = 0x100
	u.stats.DirectQuadwords = 7
	srv := newTestServer(u, status.NewBroadcaster())
	defer srv.Close()

	var regs struct {
		BASE  uint32
		Fault string
	}
	if err := sonnet.Unmarshal(get(t, srv, "/json/registers"), &regs); err != nil {
		t.Fatal(err)
	}
	if regs.BASE != 0x100 || regs.Fault != "" {
		t.Errorf("registers %+v", regs)
	}

	var stats vif1.Stats
	if err := sonnet.Unmarshal(get(t, srv, "/json/stats"), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.DirectQuadwords != 7 {
		t.Errorf("stats %+v", stats)
	}
}

func TestDumpState(t *testing.T) {
	u := &testUnit{}
	u.regs.BASE = 0x40
	srv := newTestServer(u, status.NewBroadcaster())
	defer srv.Close()

	data := get(t, srv, "/dump/state")
	r, err := states.NewZipReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	f, err := r.ReadRegisterFile("vpu/vif1_1.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if base, _ := f.GetRegister32("BASE"); base != 0x40 {
		t.Errorf("BASE 0x%x in snapshot", base)
	}
}

func TestDumpRegisters(t *testing.T) {
	u := &testUnit{}
	u.regs.TOPS = 0x1c0
	srv := newTestServer(u, status.NewBroadcaster())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dump/registers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "vif1_registers.json") {
		t.Errorf("Content-Disposition %q", cd)
	}
	var regs vif1.Registers
	data, _ := ioutil.ReadAll(resp.Body)
	if err := sonnet.Unmarshal(data, &regs); err != nil {
		t.Fatal(err)
	}
	if regs.TOPS != 0x1c0 {
		t.Errorf("registers %+v", regs)
	}
}

func TestControl(t *testing.T) {
	u := &testUnit{fault: errors.New("broken")}
	b := status.NewBroadcaster()
	srv := newTestServer(u, b)
	defer srv.Close()

	if code, data, err := post(srv, "/control", `{"Action":"reset"}`); err != nil || code != http.StatusOK {
		t.Fatalf("reset: %d %s %v", code, data, err)
	}
	if resets, _, fault := u.counters(); resets != 1 || fault != nil {
		t.Errorf("resets %d fault %v", resets, fault)
	}
	if history := b.History(); len(history) != 1 || history[0].Message != "vif1 reset" {
		t.Errorf("status history %+v", history)
	}

	if code, _, err := post(srv, "/control", `{"Action":"kick"}`); err != nil || code != http.StatusOK {
		t.Errorf("kick: %d %v", code, err)
	}
	if _, kicks, _ := u.counters(); kicks != 1 {
		t.Errorf("kicks %d", kicks)
	}

	var tests = []string{`{"Action":"halt"}`, `{"Action":`}
	for _, body := range tests {
		if code, _, err := post(srv, "/control", body); err != nil || code != http.StatusInternalServerError {
			t.Errorf("%s: %d %v", body, code, err)
		}
	}

	resp, err := http.Get(srv.URL + "/control")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /control: %s", resp.Status)
	}
}

func TestStatusFeed(t *testing.T) {
	b := status.NewBroadcaster()
	srv := newTestServer(&testUnit{}, b)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/status", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for b.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("client is not registered")
		}
		time.Sleep(time.Millisecond)
	}

	b.Status("chain done", status.INFO, 1)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var s status.Status
	if err := sonnet.Unmarshal(msg, &s); err != nil {
		t.Fatal(err)
	}
	if s.Message != "chain done" || s.Type != status.INFO {
		t.Errorf("status %+v", s)
	}

	var history []status.Status
	if err := sonnet.Unmarshal(get(t, srv, "/json/status"), &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Message != "chain done" {
		t.Errorf("history %+v", history)
	}
}

func TestStartServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- StartServer(ctx, "127.0.0.1:0", NewServer(&testUnit{}, status.NewBroadcaster()))
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("StartServer returned %v after cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server not stopped by cancel")
	}
}
