package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kasuganosora/isoarpg/game/stats"
	"github.com/kasuganosora/isoarpg/game/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterLevelAndReceiveInit(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.Login(t, UniqueID("enter"), "pass1234")
	ws := ts.ConnectWS(t, token)

	ws.Send("enter_level", map[string]string{})
	var init world.LevelInit
	ws.RecvType("level_init", 5*time.Second).Decode(t, &init)
	assert.Equal(t, "moor", init.Level)
	assert.Equal(t, 6, init.Width)
	assert.Equal(t, 4, init.Height)
	assert.Len(t, init.Tiles, 24)
	assert.Equal(t, 0, init.Tiles[1*6+2], "wall at (2,1)")
	assert.NotZero(t, init.EntityID)
}

func TestTwoPlayersShareLevel(t *testing.T) {
	ts := NewTestServer(t)
	_, _, idA, wsA := ts.LoginAndEnter(t, UniqueID("pa"))
	_, _, idB, wsB := ts.LoginAndEnter(t, UniqueID("pb"))
	require.NotEqual(t, idA, idB)
	_ = wsB

	// A sees B in a later sync.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var sync world.LevelSync
		wsA.RecvType("level_sync", time.Until(deadline)).Decode(t, &sync)
		for _, e := range sync.Entities {
			if e.ID == idB {
				return
			}
		}
	}
	t.Fatal("player B never appeared in A's level_sync")
}

func TestPlayerMove(t *testing.T) {
	ts := NewTestServer(t)
	_, _, id, ws := ts.LoginAndEnter(t, UniqueID("mover"))

	ws.Send("move", map[string]int{"x": 1, "y": 0})
	room := ts.WM.Get("moor")
	require.NotNil(t, room)
	assert.Eventually(t, func() bool {
		states, err := room.Snapshot(context.Background())
		if err != nil {
			return false
		}
		for _, st := range states {
			if st.ID == id {
				return st.X == 1 && st.Y == 0
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestBadIntentGetsError(t *testing.T) {
	ts := NewTestServer(t)
	_, _, _, ws := ts.LoginAndEnter(t, UniqueID("bad"))

	ws.Send("move", map[string]int{"x": 40, "y": 0})
	var body struct {
		Message string `json:"message"`
	}
	ws.RecvType("error", 5*time.Second).Decode(t, &body)
	assert.Contains(t, body.Message, "out of bounds")
}

func TestPingPong(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.Login(t, UniqueID("ping"), "pass1234")
	ws := ts.ConnectWS(t, token)

	ws.Send("ping", map[string]int64{"ts": 1234})
	var body map[string]int64
	ws.RecvType("pong", 5*time.Second).Decode(t, &body)
	assert.Equal(t, int64(1234), body["client_ts"])
}

func TestKillUpdatesRankingAndEvents(t *testing.T) {
	ts := NewTestServer(t)
	token, accountID, id, ws := ts.LoginAndEnter(t, UniqueID("slayer"))

	room := ts.WM.Get("moor")
	require.NoError(t, room.Do(context.Background(), func(l *world.Level) error {
		world.SendDamage(l.Enemies()[0], l.Entity(id), 100)
		return nil
	}))
	ws.RecvType("level_event", 5*time.Second)

	assert.Eventually(t, func() bool {
		n, err := ts.Stats.Kills(context.Background(), accountID)
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond)

	resp := ts.Get(t, "/api/ranking/kills", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ranking struct {
		Ranking []stats.RankEntry `json:"ranking"`
	}
	ReadJSON(t, resp, &ranking)
	require.Len(t, ranking.Ranking, 1)
	assert.Equal(t, accountID, ranking.Ranking[0].AccountID)
	assert.Equal(t, int64(1), ranking.Ranking[0].Kills)

	assert.Eventually(t, func() bool {
		resp := ts.Get(t, "/api/levels/moor/events", "")
		var body struct {
			Events []world.Event `json:"events"`
		}
		ReadJSON(t, resp, &body)
		return len(body.Events) == 1 && body.Events[0].Type == world.EventKill
	}, 5*time.Second, 20*time.Millisecond)

	resp = ts.Get(t, "/api/auth/me", token)
	var me struct {
		Kills int64 `json:"kills"`
	}
	ReadJSON(t, resp, &me)
	assert.Equal(t, int64(1), me.Kills)
}

func TestAdminKickDisconnects(t *testing.T) {
	ts := NewTestServer(t)
	_, accountID, _, ws := ts.LoginAndEnter(t, UniqueID("kicked"))

	resp := ts.Do(t, http.MethodPost, fmt.Sprintf("/api/admin/kick/%d", accountID), nil, "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Eventually(t, func() bool { return ts.SM.Count() == 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return ts.WM.Get("moor").PlayerCount() == 0 }, 5*time.Second, 20*time.Millisecond)
	_ = ws
}
