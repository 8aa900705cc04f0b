package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/isoarpg/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// Entry is one gameplay event bound for the combat log.
type Entry struct {
	TraceID   string
	Level     string
	Event     string
	AccountID *int64
	ActorID   int64
	TargetID  int64
	X, Y      int
	Detail    any
}

// Service writes combat log rows asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.CombatLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.CombatLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues entry. It never blocks; entries are dropped when the queue is full
// or the service has stopped.
func (svc *Service) Log(entry Entry) {
	select {
	case <-svc.stopCh:
		return
	default:
	}
	if entry.TraceID == "" {
		entry.TraceID = uuid.NewString()
	}
	detail := datatypes.JSON("{}")
	if entry.Detail != nil {
		raw, err := json.Marshal(entry.Detail)
		if err != nil {
			svc.logger.Warn("combat log detail not encodable", zap.String("event", entry.Event), zap.Error(err))
		} else {
			detail = datatypes.JSON(raw)
		}
	}
	record := &model.CombatLog{
		TraceID:   entry.TraceID,
		Level:     entry.Level,
		Event:     entry.Event,
		AccountID: entry.AccountID,
		ActorID:   entry.ActorID,
		TargetID:  entry.TargetID,
		X:         entry.X,
		Y:         entry.Y,
		Detail:    detail,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("combat log queue full, dropping entry",
			zap.String("event", entry.Event), zap.String("level", entry.Level))
	}
}

// Stop flushes queued entries and waits for the worker to exit.
// It returns early if ctx is done first.
func (svc *Service) Stop(ctx context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		svc.logger.Warn("combat log stop timed out", zap.Error(ctx.Err()))
	}
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.CombatLog, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.CreateInBatches(batch, batchSize).Error; err != nil {
			svc.logger.Error("combat log batch write failed", zap.Int("rows", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-svc.ch:
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case rec := <-svc.ch:
					batch = append(batch, rec)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
