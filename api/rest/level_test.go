package rest_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/kasuganosora/isoarpg/game/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels_List(t *testing.T) {
	e := newEnv(t)
	_, err := e.wm.GetOrCreate("moor")
	require.NoError(t, err)

	w := e.do(http.MethodGet, "/api/levels", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"levels":[{"id":"moor","name":"Moor","width":6,"height":4,"enemies":1,"players":0,"running":true}]}`,
		w.Body.String())
}

func TestLevels_Get(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/levels/moor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		TileWidth  float64 `json:"tile_width"`
		TileHeight float64 `json:"tile_height"`
		Tiles      []int   `json:"tiles"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 6, resp.Width)
	assert.Equal(t, 4, resp.Height)
	assert.Equal(t, 64.0, resp.TileWidth)
	assert.Equal(t, 32.0, resp.TileHeight)
	require.Len(t, resp.Tiles, 24)
	assert.Equal(t, 0, resp.Tiles[1*6+2])
	assert.Equal(t, 1, resp.Tiles[0])

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/levels/nowhere", nil).Code)
}

func TestLevels_Events(t *testing.T) {
	e := newEnv(t)
	e.stats.Publish([]world.Event{
		{Type: world.EventInteract, Level: "moor", ActorID: 1, TargetID: 2},
		{Type: world.EventInteract, Level: "moor", ActorID: 3, TargetID: 4},
	})

	assert.Eventually(t, func() bool {
		w := e.do(http.MethodGet, "/api/levels/moor/events?limit=5", nil)
		if w.Code != http.StatusOK {
			return false
		}
		var resp struct {
			Events []world.Event `json:"events"`
		}
		decode(t, w, &resp)
		return len(resp.Events) == 2 && resp.Events[0].ActorID == 3
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/levels/nowhere/events", nil).Code)
}
