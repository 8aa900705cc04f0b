package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/isoarpg/api/rest"
	"github.com/kasuganosora/isoarpg/cache"
	"github.com/kasuganosora/isoarpg/config"
	"github.com/kasuganosora/isoarpg/game/player"
	"github.com/kasuganosora/isoarpg/game/stats"
	"github.com/kasuganosora/isoarpg/game/world"
	mw "github.com/kasuganosora/isoarpg/middleware"
	"github.com/kasuganosora/isoarpg/resource"
	"github.com/kasuganosora/isoarpg/scheduler"
	"github.com/kasuganosora/isoarpg/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminKey = "admin-secret"

	moorYAML = `
id: moor
name: Moor
collision:
  - "......"
  - "..#..."
  - "......"
  - "......"
player_spawn: {x: 0, y: 0}
enemies:
  - {x: 5, y: 3}
`
)

var testSec = config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}

type env struct {
	db     *gorm.DB
	cache  cache.Cache
	stats  *stats.Service
	levels *resource.Loader
	wm     *world.WorldManager
	sm     *player.SessionManager
	sched  *scheduler.Scheduler
	r      *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)

	st := stats.New(db, c, ps, nil, logger)
	t.Cleanup(st.Stop)

	levels := resource.NewLoader(t.TempDir(), logger)
	lv, err := resource.ParseLevel([]byte(moorYAML))
	require.NoError(t, err)
	levels.Add(lv)

	wm := world.NewWorldManager(levels, world.DefaultLevelConfig(""), 10*time.Millisecond, st, logger)
	t.Cleanup(wm.StopAll)
	sm := player.NewSessionManager(logger)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	authH := rest.NewAuthHandler(db, c, testSec, logger)
	rankH := rest.NewRankingHandler(st, 10, logger)
	levelH := rest.NewLevelHandler(levels, wm, st, logger)
	adminH := rest.NewAdminHandler(db, sm, wm, sched, logger)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/login", authH.Login)
	authed := api.Group("", mw.Auth(testSec, c))
	authed.POST("/auth/logout", authH.Logout)
	authed.POST("/auth/refresh", authH.Refresh)
	authed.GET("/auth/me", authH.Me)
	api.GET("/ranking/kills", rankH.TopKills)
	api.GET("/levels", levelH.List)
	api.GET("/levels/:id", levelH.Get)
	api.GET("/levels/:id/events", levelH.Events)

	admin := api.Group("/admin", rest.AdminAuth(adminKey))
	admin.GET("/metrics", adminH.Metrics)
	admin.GET("/rooms", adminH.Rooms)
	admin.DELETE("/rooms/:id", adminH.DestroyRoom)
	admin.GET("/players", adminH.ListPlayers)
	admin.POST("/kick/:id", adminH.KickPlayer)
	admin.POST("/accounts/:id/ban", adminH.BanAccount)
	admin.GET("/scheduler", adminH.SchedulerTasks)
	admin.POST("/scheduler/:name/run", adminH.RunTask)
	admin.POST("/ranking/refresh", rankH.Refresh)

	return &env{db: db, cache: c, stats: st, levels: levels, wm: wm, sm: sm, sched: sched, r: r}
}

func (e *env) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *env) login(t *testing.T, user, pass string) (string, int64) {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", map[string]string{"username": user, "password": pass})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token     string `json:"token"`
		AccountID int64  `json:"account_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token, resp.AccountID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func bearer(token string) []string { return []string{"Authorization", "Bearer " + token} }

func admin() []string { return []string{"X-Admin-Key", adminKey} }
