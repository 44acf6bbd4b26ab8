package dispatch

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ecrtools/matchmaking-core/internal/model"
)

func TestLaunchAcceptsFirst2xxAndStopsTrying(t *testing.T) {
	var secondCalled bool
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	accepting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"region":"EU","free_resource_units":40,"free_instances_amount":2}`))
	}))
	defer accepting.Close()

	neverCalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondCalled = true
		w.WriteHeader(http.StatusOK)
	}))
	defer neverCalled.Close()

	d := New(zerolog.Nop())
	groups := []string{"EU", "US"}
	candidates := map[string][]Candidate{
		"EU": {{Addr: failing.URL, RegionGroup: "EU"}, {Addr: accepting.URL, RegionGroup: "EU"}},
		"US": {{Addr: neverCalled.URL, RegionGroup: "US"}},
	}

	resp, addr, err := d.Launch(t.Context(), groups, candidates, model.LaunchRequest{GameVersion: "1.0.0.0"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if addr != accepting.URL {
		t.Fatalf("expected the accepting server to win, got %s", addr)
	}
	if resp.FreeResourceUnits != 40 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if secondCalled {
		t.Fatal("expected the US-group server to never be tried once EU accepted")
	}
}

func TestLaunchReturnsErrorWhenAllCandidatesFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	d := New(zerolog.Nop())
	groups := []string{"EU"}
	candidates := map[string][]Candidate{"EU": {{Addr: failing.URL, RegionGroup: "EU"}}}

	if _, _, err := d.Launch(t.Context(), groups, candidates, model.LaunchRequest{}); err != ErrNoCandidateAccepted {
		t.Fatalf("expected ErrNoCandidateAccepted, got %v", err)
	}
}

func TestLaunchAcceptsBareHostAddr(t *testing.T) {
	accepting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"region":"EU","free_resource_units":10,"free_instances_amount":1}`))
	}))
	defer accepting.Close()

	// Registered server addresses are the bare host[:port] stored by the
	// registry (net.SplitHostPort on the caller's remote address), not a
	// full URL. Strip the scheme to reproduce that shape.
	bareAddr := strings.TrimPrefix(accepting.URL, "http://")

	d := New(zerolog.Nop())
	groups := []string{"EU"}
	candidates := map[string][]Candidate{"EU": {{Addr: bareAddr, RegionGroup: "EU"}}}

	resp, addr, err := d.Launch(t.Context(), groups, candidates, model.LaunchRequest{GameVersion: "1.0.0.0"})
	if err != nil {
		t.Fatalf("launch with bare host addr: %v", err)
	}
	if addr != bareAddr {
		t.Fatalf("expected returned addr %q, got %q", bareAddr, addr)
	}
	if resp.FreeResourceUnits != 10 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestLaunchURL(t *testing.T) {
	cases := []struct {
		addr string
		want string
	}{
		{"10.0.0.5:4444", "http://10.0.0.5:4444/launch"},
		{"game-server.internal", "http://game-server.internal/launch"},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080/launch"},
		{"https://game-server.example.com", "https://game-server.example.com/launch"},
	}
	for _, c := range cases {
		if got := launchURL(c.addr); got != c.want {
			t.Errorf("launchURL(%q) = %q, want %q", c.addr, got, c.want)
		}
	}
}
