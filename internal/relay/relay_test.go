package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mentorhive/relay/internal/stats"
	"github.com/mentorhive/relay/internal/store"
	"github.com/mentorhive/relay/internal/testutil"
	"github.com/mentorhive/relay/internal/types"
)

func newTestGateway(t *testing.T) (*Gateway, *store.MockMessageStore, *store.MockProfileDirectory) {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return().Times(4)
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	st := &store.MockMessageStore{}
	dir := &store.MockProfileDirectory{}

	g, err := NewGateway(testutil.TestLogger(t), st, dir, su, time.Minute)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g, st, dir
}

func newTestClient(g *Gateway, user types.User) *Client {
	c := NewClient(nil, g, g.log, user)
	g.clients[c] = struct{}{}
	return c
}

func recvEvent(t *testing.T, c *Client) *ServerEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("unexpected event %s", ev.Event)
	case <-time.After(50 * time.Millisecond):
	}
}
