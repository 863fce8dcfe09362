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
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/recon"
	"github.com/blnkfinance/recon/config"
	"github.com/blnkfinance/recon/internal/apierror"
	"github.com/blnkfinance/recon/internal/notification"
	redis_db "github.com/blnkfinance/recon/internal/redis-db"
	"github.com/blnkfinance/recon/model"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

const proposalEvent = "match.proposed"

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// dispatchAutoReconcile fans the periodic auto-reconcile tick out to one task per company.
func (r *reconInstance) dispatchAutoReconcile(ctx context.Context, _ *asynq.Task) error {
	ctx, span := otel.Tracer("recon.auto_reconcile.worker").Start(ctx, "Dispatch auto-reconcile runs")
	defer span.End()

	return r.recon.DispatchAutoReconcile(ctx)
}

// processAutoReconcile runs auto-reconcile for the company named in the task. A run already in
// progress for the company is not an error: that run enqueues its own follow-up when lines remain.
func (r *reconInstance) processAutoReconcile(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("recon.auto_reconcile.worker").Start(ctx, "Process auto-reconcile run")
	defer span.End()

	var payload recon.AutoReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	run, err := r.recon.AutoReconcile(ctx, payload.CompanyID)
	if err != nil {
		if code, ok := apierror.CodeOf(err); ok && code == apierror.ErrConflict {
			logrus.WithField("company_id", payload.CompanyID).Info("auto-reconcile already running, skipping")
			return nil
		}
		logrus.Infof("Auto-reconcile of company %d pushed back for retry due to error: %v", payload.CompanyID, err)
		return err
	}

	log.Println(" [*] Auto-reconcile run finished", run.RunID, run.Status)
	return nil
}

// processMatchProposal delivers a published proposal to the webhook endpoint.
func processMatchProposal(_ context.Context, t *asynq.Task) error {
	var proposal model.Proposal
	if err := json.Unmarshal(t.Payload(), &proposal); err != nil {
		logrus.Error(err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := notification.SendWebhook(proposalEvent, proposal); err != nil {
		return err
	}

	logrus.Printf(" [*] Proposal delivered %s", proposal.ProposalID)
	return nil
}

func initializeQueues(conf *config.Configuration) map[string]int {
	return map[string]int{
		conf.Queue.AutoReconcileQueue: 2,
		conf.Queue.ProposalQueue:      1,
	}
}

func redisConnOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

func initializeWorkerServer(conf *config.Configuration, redisOpt asynq.RedisClientOpt) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: conf.Queue.WorkerConcurrency,
		Queues:      initializeQueues(conf),
		Logger:      logrus.StandardLogger(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				notification.NotifyError(fmt.Errorf("task %s exhausted its retries: %w", task.Type(), err))
			}
		}),
	})
}

// initializeScheduler registers the periodic auto-reconcile dispatch.
func initializeScheduler(conf *config.Configuration, redisOpt asynq.RedisClientOpt) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logrus.StandardLogger(),
	})

	entryID, err := scheduler.Register(
		conf.Matching.AutoReconcileSchedule,
		recon.NewAutoReconcileDispatchTask(),
		asynq.Queue(conf.Queue.AutoReconcileQueue),
		asynq.Unique(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("error registering auto-reconcile schedule %q: %v", conf.Matching.AutoReconcileSchedule, err)
	}
	logrus.WithFields(logrus.Fields{"entry_id": entryID, "schedule": conf.Matching.AutoReconcileSchedule}).Info("scheduled auto-reconcile dispatch")
	return scheduler, nil
}

func initializeTaskHandlers(r *reconInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(recon.TypeAutoReconcileDispatch, r.dispatchAutoReconcile)
	mux.HandleFunc(recon.TypeAutoReconcileCompany, r.processAutoReconcile)
	mux.HandleFunc(recon.TypeMatchProposal, processMatchProposal)
}

// workerCommands defines the "workers" command: the task server, the dispatch scheduler and
// the asynqmon dashboard.
func workerCommands(r *reconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start recon workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := r.cnf

			phClient, shutdown, err := initializeObservability(ctx, r)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			redisOpt, err := redisConnOpt(conf)
			if err != nil {
				log.Fatal(err)
			}

			srv := initializeWorkerServer(conf, redisOpt)
			mux := asynq.NewServeMux()
			initializeTaskHandlers(r, mux)

			scheduler, err := initializeScheduler(conf, redisOpt)
			if err != nil {
				log.Fatal(err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			h := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: redisOpt,
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
