/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package recon

import (
	"context"
	"fmt"

	"github.com/blnkfinance/recon/config"
	"github.com/blnkfinance/recon/internal/apierror"
	redlock "github.com/blnkfinance/recon/internal/lock"
	"github.com/blnkfinance/recon/internal/notification"
	"github.com/blnkfinance/recon/model"
	"github.com/pkg/errors"
	"github.com/posthog/posthog-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Webhook events emitted by auto-reconcile runs.
const (
	EventAutoReconcileCompleted = "auto_reconcile.completed"
	EventAutoReconcileFailed    = "auto_reconcile.failed"
)

// SetEventClient attaches the product analytics client runs are reported to.
func (r *Recon) SetEventClient(client posthog.Client) {
	r.events = client
}

// DispatchAutoReconcile enqueues an auto-reconcile run for every company holding unreconciled
// statement lines.
func (r *Recon) DispatchAutoReconcile(ctx context.Context) error {
	ctx, span := otel.Tracer("Recon").Start(ctx, "Dispatching auto-reconcile runs")
	defer span.End()

	if r.queue == nil {
		return errors.New("auto-reconcile dispatch requires a task queue")
	}

	companies, err := r.datasource.GetCompaniesToReconcile(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	for _, companyID := range companies {
		if err := r.queue.EnqueueAutoReconcile(ctx, companyID, 0); err != nil {
			span.RecordError(err)
			return err
		}
	}
	span.SetAttributes(attribute.Int("companies", len(companies)))
	return nil
}

// AutoReconcile matches the unreconciled statement lines of a company and records a proposal
// for every auto-reconcilable outcome. Lines never checked before are processed first, then
// the ones checked least recently. The run stops dispatching lines once the configured deadline
// elapses and schedules a follow-up run when lines may remain.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - companyID int64: The company whose statement lines are processed.
//
// Returns:
// - *model.Run: The run record with its final counters.
// - error: A CONFLICT APIError when a run already holds the company lock, or the failure that stopped the run.
func (r *Recon) AutoReconcile(ctx context.Context, companyID int64) (*model.Run, error) {
	ctx, span := otel.Tracer("Recon").Start(ctx, "Auto-reconciling company", trace.WithAttributes(attribute.Int64("company_id", companyID)))
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if r.redis != nil {
		locker := redlock.NewAutoReconcileLocker(r.redis, companyID)
		if err := locker.Lock(ctx, cfg.Matching.LockTimeout()); err != nil {
			if errors.Is(err, redlock.ErrLockHeld) {
				return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("an auto-reconcile run is already in progress for company %d", companyID), err)
			}
			return nil, err
		}
		defer func() {
			if err := locker.Unlock(context.Background()); err != nil {
				logrus.WithError(err).WithField("company_id", companyID).Warn("failed to release auto-reconcile lock")
			}
		}()
	}

	startedAt := r.now()
	run := &model.Run{
		RunID:     model.GenerateUUIDWithSuffix("run"),
		CompanyID: companyID,
		Status:    model.RunStatusStarted,
		StartedAt: startedAt,
	}
	if err := r.datasource.RecordRun(ctx, run); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("run_id", run.RunID))

	batchSize := cfg.Matching.AutoReconcileBatchSize
	lines, err := r.datasource.GetStatementLinesToReconcile(ctx, companyID, batchSize)
	if err != nil {
		return r.failRun(ctx, run, errors.Wrap(err, "loading statement lines"))
	}

	rules, err := r.datasource.GetReconcileModels(ctx, companyID)
	if err != nil {
		return r.failRun(ctx, run, errors.Wrapf(err, "loading reconcile models of company %d", companyID))
	}

	deadline := startedAt.Add(cfg.Matching.Deadline())
	checked := make([]int64, 0, len(lines))
	for _, stLine := range lines {
		if !r.now().Before(deadline) {
			run.DeadlineReached = true
			break
		}

		proposed, err := r.reconcileLine(ctx, run, rules, stLine)
		if err != nil {
			return r.failRun(ctx, run, err)
		}

		run.ProcessedLines++
		checked = append(checked, stLine.ID)
		if proposed {
			run.ProposedLines++
		} else {
			run.SkippedLines++
		}
	}

	if len(checked) > 0 {
		if err := r.datasource.MarkStatementLinesChecked(ctx, checked, r.now()); err != nil {
			return r.failRun(ctx, run, err)
		}
	}

	completedAt := r.now()
	run.CompletedAt = &completedAt
	run.Status = model.RunStatusCompleted
	if run.DeadlineReached {
		run.Status = model.RunStatusTimedOut
	}
	if err := r.datasource.UpdateRun(ctx, run); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if (run.DeadlineReached || (batchSize > 0 && len(lines) == batchSize)) && r.queue != nil {
		if err := r.queue.EnqueueAutoReconcile(ctx, companyID, 0); err != nil {
			logrus.WithError(err).WithField("run_id", run.RunID).Warn("failed to schedule follow-up auto-reconcile run")
		}
	}

	logrus.WithFields(logrus.Fields{
		"run_id":           run.RunID,
		"company_id":       companyID,
		"processed_lines":  run.ProcessedLines,
		"proposed_lines":   run.ProposedLines,
		"skipped_lines":    run.SkippedLines,
		"deadline_reached": run.DeadlineReached,
	}).Info("auto-reconcile run finished")

	r.reportRun(EventAutoReconcileCompleted, run)
	return run, nil
}

// reconcileLine matches one statement line and records the proposal when the outcome can be
// posted without review. It reports whether a proposal was recorded.
func (r *Recon) reconcileLine(ctx context.Context, run *model.Run, rules []*model.ReconcileModel, stLine *model.StatementLine) (bool, error) {
	partner, err := r.RetrievePartner(ctx, stLine, rules)
	if err != nil {
		return false, err
	}

	outcome, err := r.ApplyRules(ctx, rules, stLine, partner)
	if err != nil {
		return false, err
	}
	if outcome == nil || !outcome.AutoReconcile || !outcome.Postable() {
		return false, nil
	}

	proposal := model.NewProposal(run.RunID, stLine.ID, outcome, r.now())
	if err := r.datasource.RecordProposal(ctx, &proposal); err != nil {
		return false, err
	}

	if r.queue != nil {
		if err := r.queue.PublishProposal(ctx, &proposal); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *Recon) failRun(ctx context.Context, run *model.Run, cause error) (*model.Run, error) {
	completedAt := r.now()
	run.Status = model.RunStatusFailed
	run.CompletedAt = &completedAt
	if err := r.datasource.UpdateRun(ctx, run); err != nil {
		logrus.WithError(err).WithField("run_id", run.RunID).Error("failed to store failed run")
	}

	notification.NotifyError(errors.Wrapf(cause, "auto-reconcile run %s of company %d failed", run.RunID, run.CompanyID))
	r.reportRun(EventAutoReconcileFailed, run)
	return run, cause
}

func (r *Recon) reportRun(event string, run *model.Run) {
	if err := notification.SendWebhook(event, run); err != nil {
		logrus.WithError(err).WithField("run_id", run.RunID).Warn("failed to send run webhook")
	}

	if r.events == nil {
		return
	}
	err := r.events.Enqueue(posthog.Capture{
		DistinctId: fmt.Sprintf("company-%d", run.CompanyID),
		Event:      event,
		Properties: posthog.NewProperties().
			Set("run_id", run.RunID).
			Set("status", string(run.Status)).
			Set("processed_lines", run.ProcessedLines).
			Set("proposed_lines", run.ProposedLines).
			Set("deadline_reached", run.DeadlineReached),
	})
	if err != nil {
		logrus.WithError(err).Debug("failed to report run event")
	}
}
