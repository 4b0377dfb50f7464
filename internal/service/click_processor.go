package service

import (
	"context"
	"sync"
	"time"

	"github.com/refgrid/affiliate-engine/internal/metrics"
	"github.com/refgrid/affiliate-engine/internal/models"
	"github.com/refgrid/affiliate-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultWorkerCount   = 3
	defaultChannelBuffer = 1000
	maxRetries           = 3
)

// ClickProcessor ingests click events asynchronously: the tracking
// endpoint answers immediately and a worker pool persists the ledger rows.
type ClickProcessor interface {
	Start()
	Stop()
	RecordClick(ctx context.Context, event *models.ClickEvent) error
	GetStats(ctx context.Context, affiliateID string) (*models.ClickStats, error)
	GetDailyStats(ctx context.Context, affiliateID string, days int) ([]models.DailyClickStats, error)
}

type clickProcessor struct {
	clickRepo    repository.ClickRepository
	logger       *zap.Logger
	clickChannel chan *models.ClickEvent
	workerCount  int
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewClickProcessor(clickRepo repository.ClickRepository, logger *zap.Logger) ClickProcessor {
	return &clickProcessor{
		clickRepo:    clickRepo,
		logger:       logger,
		clickChannel: make(chan *models.ClickEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
	}
}

func (p *clickProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Starting click processor workers", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *clickProcessor) Stop() {
	p.logger.Info("Stopping click processor...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Click processor stopped")
}

func (p *clickProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Click worker started", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Click worker stopped", zap.Int("id", id))
			return

		case event, ok := <-p.clickChannel:
			if !ok {
				return
			}
			metrics.ClickQueueSize.Set(float64(len(p.clickChannel)))
			p.processClick(event)
		}
	}
}

// processClick writes one ledger row with retry and backoff. The ledger is
// append-only; a row is never updated after this write.
func (p *clickProcessor) processClick(event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()

	click := &models.Click{
		ClickID:     event.ClickID,
		AffiliateID: event.AffiliateID,
		CampaignID:  event.CampaignID,
		IPAddress:   event.IPAddress,
		Referrer:    event.Referrer,
		UserAgent:   event.UserAgent,
		Filtered:    event.Filtered,
		BotReason:   event.BotReason,
		CreatedAt:   time.Now(),
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = p.clickRepo.RecordClick(ctx, click); err == nil {
			return
		}
		if i < maxRetries-1 {
			p.logger.Debug("Retrying click write",
				zap.String("click_id", event.ClickID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	p.logger.Error("Failed to record click after all retries",
		zap.String("click_id", event.ClickID),
		zap.Error(err),
	)
}

// RecordClick enqueues a click event without blocking the request. A full
// buffer drops the event with a warning rather than stalling tracking.
func (p *clickProcessor) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.clickChannel <- event:
		metrics.ClickQueueSize.Set(float64(len(p.clickChannel)))
		return nil
	default:
		p.logger.Warn("Click channel buffer full, event dropped",
			zap.String("click_id", event.ClickID),
		)
		return nil
	}
}

func (p *clickProcessor) GetStats(ctx context.Context, affiliateID string) (*models.ClickStats, error) {
	return p.clickRepo.GetStats(ctx, affiliateID)
}

func (p *clickProcessor) GetDailyStats(ctx context.Context, affiliateID string, days int) ([]models.DailyClickStats, error) {
	return p.clickRepo.GetDailyStats(ctx, affiliateID, days)
}
