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
	"embed"
	"time"

	"github.com/blnkfinance/recon/config"
	"github.com/blnkfinance/recon/database"
	redis_db "github.com/blnkfinance/recon/internal/redis-db"
	"github.com/posthog/posthog-go"
	"github.com/redis/go-redis/v9"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Recon is the matching service: it evaluates reconcile models against bank statement lines
// and runs the per-company auto-reconcile loop.
type Recon struct {
	queue         *Queue
	redis         redis.UniversalClient
	datasource    database.IDataSource
	matchingRules *invoiceMatchingRules
	events        posthog.Client
	now           func() time.Time
}

// NewRecon initializes a new instance of Recon with the provided datasource.
// It fetches the configuration, connects to Redis for the auto-reconcile locks and sets up the task queue.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
//
// Returns:
// - *Recon: A pointer to the newly created Recon instance.
// - error: An error if any of the initialization steps fail.
func NewRecon(db database.IDataSource) (*Recon, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	newRecon := newRecon(db)
	newRecon.redis = redisClient.Client()
	newRecon.queue = NewQueue(configuration)
	return newRecon, nil
}

// newRecon builds the engine around db without any Redis-backed collaborator.
func newRecon(db database.IDataSource) *Recon {
	r := &Recon{datasource: db, now: time.Now}
	r.matchingRules = newInvoiceMatchingRules()
	r.matchingRules.register(10, r.invoiceMatchingAmlsCandidates)
	return r
}

// DataSource returns the datasource the service reads from.
func (r *Recon) DataSource() database.IDataSource {
	return r.datasource
}

// Queue returns the task queue, or nil when the service runs without Redis.
func (r *Recon) Queue() *Queue {
	return r.queue
}
