package service

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"virtualcard_back/pkg/config"
	"virtualcard_back/pkg/metrics"
	"virtualcard_back/pkg/repository"
)

const (
	passInFlight   = "in_flight"
	passUnverified = "unverified"

	runTimeout = 4 * time.Minute
)

// ReconcileJob settles top-ups the request path left pending: rows whose funding call
// never reported back, and rows whose payment was not yet on chain.
type ReconcileJob struct {
	topups     repository.Topup
	verifier   PaymentVerifier
	dispatcher *FundingDispatcher
	cards      *CardService
	wallet     string
	cfg        config.Reconcile
	cron       *cron.Cron
	now        func() time.Time
	log        logrus.FieldLogger
}

func NewReconcileJob(topups repository.Topup, verifier PaymentVerifier, dispatcher *FundingDispatcher,
	cards *CardService, wallet string, cfg config.Reconcile, log logrus.FieldLogger) *ReconcileJob {
	return &ReconcileJob{
		topups:     topups,
		verifier:   verifier,
		dispatcher: dispatcher,
		cards:      cards,
		wallet:     wallet,
		cfg:        cfg,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:        time.Now,
		log:        log.WithField("component", "reconcile"),
	}
}

func (j *ReconcileJob) Start() error {
	_, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		j.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.log.WithField("schedule", j.cfg.Schedule).Info("reconciliation job started")
	return nil
}

func (j *ReconcileJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("reconciliation job stopped")
}

type RunReport struct {
	Redispatched int
	Reverified   int
	Balances     int
}

func (j *ReconcileJob) RunOnce(ctx context.Context) RunReport {
	var report RunReport
	var err error

	if report.Redispatched, err = j.redispatchInFlight(ctx); err != nil {
		j.log.WithError(err).Error("in-flight pass failed")
	}
	if report.Reverified, err = j.retryUnverified(ctx); err != nil {
		j.log.WithError(err).Error("unverified pass failed")
	}
	if j.cards != nil {
		if report.Balances, err = j.cards.SyncBalances(ctx); err != nil {
			j.log.WithError(err).Error("balance sync failed")
		}
	}
	j.log.WithFields(logrus.Fields{
		"redispatched": report.Redispatched,
		"reverified":   report.Reverified,
		"balances":     report.Balances,
	}).Info("reconciliation run finished")
	return report
}

// redispatchInFlight repeats the funding call for rows that were claimed but never
// settled. The stored idempotency key makes the provider treat it as the same request.
func (j *ReconcileJob) redispatchInFlight(ctx context.Context) (int, error) {
	rows, err := j.topups.ListInFlight(ctx, j.now().Add(-j.cfg.InFlightAge), j.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, t := range rows {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		_, err := j.dispatcher.Redispatch(ctx, t)
		if j.record(passInFlight, t.TxID, err) {
			settled++
		}
	}
	return settled, nil
}

// retryUnverified re-checks pending rows whose payment was not confirmed at submit time.
func (j *ReconcileJob) retryUnverified(ctx context.Context) (int, error) {
	now := j.now()
	rows, err := j.topups.ListUnverified(ctx, now.Add(-j.cfg.RetryMinAge), now.Add(-j.cfg.RetryMaxAge), j.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, t := range rows {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if !j.verifier.Verify(ctx, t.TxID, j.wallet, t.Amount) {
			continue
		}
		metrics.LedgerVerifications.WithLabelValues("confirmed").Inc()
		_, err := j.dispatcher.Dispatch(ctx, t)
		if j.record(passUnverified, t.TxID, err) {
			settled++
		}
	}
	return settled, nil
}

// record logs one attempt and reports whether the row reached a terminal status.
func (j *ReconcileJob) record(pass, txID string, err error) bool {
	log := j.log.WithFields(logrus.Fields{"pass": pass, "txid": txID})
	var fundingErr *FundingError
	switch {
	case err == nil:
		metrics.ReconcileRepairs.WithLabelValues(pass, "completed").Inc()
		log.Info("topup completed")
		return true
	case errors.As(err, &fundingErr):
		metrics.ReconcileRepairs.WithLabelValues(pass, "failed").Inc()
		log.WithField("reason", fundingErr.Message).Info("topup failed")
		return true
	case errors.Is(err, ErrAlreadyDispatched):
		log.Debug("topup taken by another worker")
	default:
		log.WithError(err).Warn("topup still unsettled")
	}
	return false
}
