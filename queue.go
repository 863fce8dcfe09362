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
	"encoding/json"
	"fmt"
	"time"

	"github.com/blnkfinance/recon/config"
	redis_db "github.com/blnkfinance/recon/internal/redis-db"
	"github.com/blnkfinance/recon/model"
	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// Task types handled by the workers.
const (
	TypeAutoReconcileDispatch = "auto_reconcile:dispatch"
	TypeAutoReconcileCompany  = "auto_reconcile:company"
	TypeMatchProposal         = "match_proposal"
)

// Queue represents a queue for handling auto-reconcile runs and the proposals they produce.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	names     config.QueueConfig
}

// AutoReconcilePayload is the payload of a per-company auto-reconcile task.
type AutoReconcilePayload struct {
	CompanyID int64 `json:"company_id"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		logrus.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
		names:     conf.Queue,
	}
}

// NewAutoReconcileDispatchTask builds the periodic task fanning auto-reconcile out to every company.
func NewAutoReconcileDispatchTask() *asynq.Task {
	return asynq.NewTask(TypeAutoReconcileDispatch, nil)
}

// NewAutoReconcileTask builds the auto-reconcile task of one company.
func NewAutoReconcileTask(companyID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(AutoReconcilePayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAutoReconcileCompany, payload), nil
}

// EnqueueAutoReconcile schedules an auto-reconcile run for companyID after delay.
// A run already waiting for the company is not duplicated.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - companyID int64: The company whose statement lines are reconciled.
// - delay time.Duration: How long to wait before the run starts.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) EnqueueAutoReconcile(ctx context.Context, companyID int64, delay time.Duration) error {
	ctx, span := otel.Tracer("Queue").Start(ctx, "Enqueueing auto-reconcile run")
	defer span.End()

	task, err := NewAutoReconcileTask(companyID)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{
		asynq.Queue(q.names.AutoReconcileQueue),
		asynq.TaskID(fmt.Sprintf("auto-reconcile-%d-%d", companyID, time.Now().Add(delay).UnixNano())),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
	}
	info, err := q.Client.EnqueueContext(ctx, task, taskOptions...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		logrus.WithError(err).WithField("company_id", companyID).Error("failed to enqueue auto-reconcile run")
		return err
	}

	logrus.WithFields(logrus.Fields{"company_id": companyID, "task_id": info.ID}).Info("enqueued auto-reconcile run")
	return nil
}

// PublishProposal hands an auto-reconcilable proposal to the posting workers. The proposal id is
// the task id so a proposal is published at most once.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - proposal *model.Proposal: The proposal to publish.
//
// Returns:
// - error: An error if the proposal could not be enqueued.
func (q *Queue) PublishProposal(ctx context.Context, proposal *model.Proposal) error {
	ctx, span := otel.Tracer("Queue").Start(ctx, "Publishing match proposal")
	defer span.End()

	payload, err := json.Marshal(proposal)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeMatchProposal, payload)
	_, err = q.Client.EnqueueContext(ctx, task, asynq.TaskID(proposal.ProposalID), asynq.Queue(q.names.ProposalQueue), asynq.MaxRetry(5))
	if err != nil {
		logrus.WithError(err).WithField("proposal_id", proposal.ProposalID).Error("failed to publish match proposal")
		return err
	}

	logrus.WithFields(logrus.Fields{"proposal_id": proposal.ProposalID, "statement_line_id": proposal.StatementLineID}).Debug("published match proposal")
	return nil
}

// Stats reports the task counts of the auto-reconcile and proposal queues. A queue that never
// received a task is omitted.
func (q *Queue) Stats() ([]*asynq.QueueInfo, error) {
	stats := make([]*asynq.QueueInfo, 0, 2)
	for _, name := range []string{q.names.AutoReconcileQueue, q.names.ProposalQueue} {
		info, err := q.Inspector.GetQueueInfo(name)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		stats = append(stats, info)
	}
	return stats, nil
}
