package rest_test

import (
	"net/http"
	"testing"

	"github.com/kasuganosora/isoarpg/game/stats"
	"github.com/kasuganosora/isoarpg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedKills(t *testing.T, e *env, name string, kills int64) int64 {
	t.Helper()
	acc := &model.Account{Username: name, PasswordHash: "x", Status: model.AccountNormal}
	require.NoError(t, e.db.Create(acc).Error)
	require.NoError(t, e.db.Create(&model.PlayerStats{AccountID: acc.ID, Username: name, Kills: kills}).Error)
	return acc.ID
}

func TestRanking_TopKills(t *testing.T) {
	e := newEnv(t)
	for i, name := range []string{"ann", "ben", "cat", "dan"} {
		seedKills(t, e, name, int64(i+1))
	}

	w := e.do(http.MethodGet, "/api/ranking/kills?limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Ranking []stats.RankEntry `json:"ranking"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Ranking, 3)
	assert.Equal(t, "dan", resp.Ranking[0].Username)
	assert.Equal(t, int64(4), resp.Ranking[0].Kills)
	assert.Equal(t, 3, resp.Ranking[2].Rank)
}

func TestRanking_Empty(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/api/ranking/kills", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ranking":[]}`, w.Body.String())
}

func TestRanking_AdminRefresh(t *testing.T) {
	e := newEnv(t)
	seedKills(t, e, "ann", 2)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/admin/ranking/refresh", nil).Code)
	w := e.do(http.MethodPost, "/api/admin/ranking/refresh", nil, admin()...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"refreshed":1}`, w.Body.String())
}
