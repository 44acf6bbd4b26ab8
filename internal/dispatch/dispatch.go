// Package dispatch sends a formed match's launch request to candidate game
// servers in region-preference order, accepting the first 2xx response.
// Grounded on original_source/ecr_matchmaking/backend/logic/game_server_utils.py's
// try_to_launch_match, ported onto net/http.Client in the teacher's style
// of using the standard library directly for outbound calls.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecrtools/matchmaking-core/internal/metrics"
	"github.com/ecrtools/matchmaking-core/internal/model"
)

// LaunchTimeout bounds a single candidate launch attempt.
const LaunchTimeout = 5 * time.Second

// ErrNoCandidateAccepted is returned when every candidate server in every
// region group declined or failed the launch request.
var ErrNoCandidateAccepted = errors.New("dispatch: no candidate accepted the launch")

// Dispatcher sends launch requests over HTTP.
type Dispatcher struct {
	client *http.Client
	logger zerolog.Logger
}

// New creates a Dispatcher with a bounded-timeout HTTP client.
func New(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: LaunchTimeout},
		logger: logger,
	}
}

// Candidate is one launch target within a region group.
type Candidate struct {
	Addr        string
	RegionGroup string
}

// Launch tries, in order, each region group's candidates, then each
// candidate within a group, returning the first accepted response. The
// addr is the server's bare registered host[:port] (or a full http(s)
// base URL in tests); launchURL fills in a scheme when one is missing.
func (d *Dispatcher) Launch(ctx context.Context, orderedGroups []string, candidatesByGroup map[string][]Candidate, req model.LaunchRequest) (*model.LaunchResponse, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("marshal launch request: %w", err)
	}

	for _, group := range orderedGroups {
		for _, candidate := range candidatesByGroup[group] {
			resp, err := d.attempt(ctx, candidate.Addr, body)
			if err != nil {
				d.logger.Warn().Err(err).Str("server", candidate.Addr).Str("region_group", group).Msg("launch attempt failed")
				metrics.RecordLaunchAttempt(group, "rejected")
				continue
			}
			metrics.RecordLaunchAttempt(group, "accepted")
			return resp, candidate.Addr, nil
		}
	}
	return nil, "", ErrNoCandidateAccepted
}

func (d *Dispatcher) attempt(ctx context.Context, addr string, body []byte) (*model.LaunchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, launchURL(addr), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("launch returned status %d", resp.StatusCode)
	}

	var out model.LaunchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode launch response: %w", err)
	}
	return &out, nil
}

// launchURL builds the /launch endpoint for a registered server address.
// Registered addresses are the bare host[:port] returned by
// net.SplitHostPort on the caller's remote address (see
// handler.callerAddr), which carries no scheme; http:// is prepended to
// match the original's http://{server}/launch construction. Addresses
// that already carry a scheme (e.g. httptest server URLs in tests) pass
// through unchanged.
func launchURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr + "/launch"
	}
	return "http://" + addr + "/launch"
}
