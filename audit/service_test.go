package audit

import (
	"context"
	"testing"
	"time"

	"github.com/kasuganosora/isoarpg/model"
	"github.com/kasuganosora/isoarpg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLog_FlushedOnStop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	acc := int64(7)
	svc.Log(Entry{
		TraceID:   "trace-123",
		Level:     "town",
		Event:     "kill",
		AccountID: &acc,
		ActorID:   1,
		TargetID:  4,
		X:         30,
		Y:         10,
		Detail:    map[string]int{"kills": 3},
	})
	svc.Stop(context.Background())

	var logs []model.CombatLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	got := logs[0]
	assert.Equal(t, "trace-123", got.TraceID)
	assert.Equal(t, "town", got.Level)
	assert.Equal(t, "kill", got.Event)
	require.NotNil(t, got.AccountID)
	assert.Equal(t, int64(7), *got.AccountID)
	assert.Equal(t, 30, got.X)
	assert.JSONEq(t, `{"kills":3}`, string(got.Detail))
}

func TestLog_GeneratesTraceID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	svc.Log(Entry{Level: "town", Event: "interact"})
	svc.Stop(context.Background())

	var logs []model.CombatLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].TraceID, 36)
	assert.Nil(t, logs[0].AccountID)
	assert.JSONEq(t, `{}`, string(logs[0].Detail))
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	for i := 0; i < 250; i++ {
		svc.Log(Entry{Level: "town", Event: "kill", ActorID: int64(i)})
	}
	svc.Stop(context.Background())

	var count int64
	require.NoError(t, db.Model(&model.CombatLog{}).Count(&count).Error)
	assert.Equal(t, int64(250), count)
}

func TestLog_TimerFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	defer svc.Stop(context.Background())

	svc.Log(Entry{Level: "town", Event: "kill"})
	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.CombatLog{}).Count(&count)
		return count == 1
	}, 4*time.Second, 100*time.Millisecond)
}

func TestStop_IdempotentAndDropsLate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	svc.Stop(context.Background())
	svc.Stop(context.Background())

	svc.Log(Entry{Level: "town", Event: "kill"})
	var count int64
	require.NoError(t, db.Model(&model.CombatLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLog_UnencodableDetail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	svc.Log(Entry{Level: "town", Event: "kill", Detail: make(chan int)})
	svc.Stop(context.Background())

	var logs []model.CombatLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{}`, string(logs[0].Detail))
}
