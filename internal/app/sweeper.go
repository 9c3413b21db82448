/**
 * @description
 * Cron-driven background jobs: the refund sweep that pays out approved return
 * requests, and the optional offer-expiry sweep. The refund sweep is the
 * safety net behind IssueRefund's exactly-once guarantee: because each payout
 * is guarded at the store layer, sweeping a request that was already refunded
 * applies nothing.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SweeperConfig carries the schedules and knobs for the background jobs.
type SweeperConfig struct {
	RefundSweepSchedule  string
	RefundSweepBatchSize int
	// OfferExpiryHours of 0 disables the expiry sweep entirely.
	OfferExpiryHours    int
	OfferExpirySchedule string
}

// Sweeper owns the cron scheduler for the background jobs.
type Sweeper struct {
	cron    *cron.Cron
	returns *ReturnEngine
	offers  *OfferEngine
	cfg     SweeperConfig
}

// NewSweeper creates the scheduler. Jobs run with panic recovery so a bad
// batch cannot take the whole process down.
func NewSweeper(returns *ReturnEngine, offers *OfferEngine, cfg SweeperConfig) *Sweeper {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))))
	return &Sweeper{
		cron:    c,
		returns: returns,
		offers:  offers,
		cfg:     cfg,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Sweeper) Start() {
	if _, err := s.cron.AddFunc(s.cfg.RefundSweepSchedule, s.runRefundSweep); err != nil {
		log.Printf("level=error component=sweeper msg=\"failed to schedule refund sweep\" schedule=%q err=%v", s.cfg.RefundSweepSchedule, err)
	} else {
		log.Printf("level=info component=sweeper msg=\"scheduled refund sweep\" schedule=%q", s.cfg.RefundSweepSchedule)
	}

	if s.cfg.OfferExpiryHours > 0 {
		if _, err := s.cron.AddFunc(s.cfg.OfferExpirySchedule, s.runOfferExpiry); err != nil {
			log.Printf("level=error component=sweeper msg=\"failed to schedule offer expiry\" schedule=%q err=%v", s.cfg.OfferExpirySchedule, err)
		} else {
			log.Printf("level=info component=sweeper msg=\"scheduled offer expiry\" schedule=%q hours=%d", s.cfg.OfferExpirySchedule, s.cfg.OfferExpiryHours)
		}
	}

	s.cron.Start()
}

// Stop gracefully stops the scheduler. The returned context is done once any
// in-flight job has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Sweeper) runRefundSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	issued, err := s.returns.SweepApproved(ctx, s.cfg.RefundSweepBatchSize)
	if err != nil {
		log.Printf("level=error component=sweeper msg=\"refund sweep failed\" err=%v", err)
		return
	}
	if issued > 0 {
		log.Printf("level=info component=sweeper msg=\"refund sweep completed\" issued=%d", issued)
	}
}

func (s *Sweeper) runOfferExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(s.cfg.OfferExpiryHours) * time.Hour)
	if _, err := s.offers.ExpireBefore(ctx, cutoff); err != nil {
		log.Printf("level=error component=sweeper msg=\"offer expiry sweep failed\" err=%v", err)
	}
}
