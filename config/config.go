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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	DEFAULT_AUTO_RECONCILE_DEADLINE_SEC = 180
	DEFAULT_AUTO_RECONCILE_BATCH_SIZE   = 100
	DEFAULT_AUTO_RECONCILE_SCHEDULE     = "@every 1h"
	DEFAULT_RULE_CACHE_TTL_SEC          = 300
	DEFAULT_LOCK_TIMEOUT_SEC            = 600
	DEFAULT_WORKER_CONCURRENCY          = 10
	DEFAULT_MONITORING_PORT             = "5004"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"RECON_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"RECON_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"RECON_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"RECON_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"RECON_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"RECON_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns             string        `json:"dns" envconfig:"RECON_DATA_SOURCE_DNS"`
	MaxOpenConns    int           `json:"max_open_conns" envconfig:"RECON_DATA_SOURCE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" envconfig:"RECON_DATA_SOURCE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" envconfig:"RECON_DATA_SOURCE_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" envconfig:"RECON_DATA_SOURCE_CONN_MAX_IDLE_TIME"`
	ConnectRetry    time.Duration `json:"connect_retry" envconfig:"RECON_DATA_SOURCE_CONNECT_RETRY"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"RECON_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"RECON_REDIS_SKIP_TLS_VERIFY"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"RECON_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"RECON_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"RECON_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"RECON_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url" envconfig:"RECON_WEBHOOK_URL"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type QueueConfig struct {
	AutoReconcileQueue string `json:"auto_reconcile_queue" envconfig:"RECON_QUEUE_AUTO_RECONCILE"`
	ProposalQueue      string `json:"proposal_queue" envconfig:"RECON_QUEUE_PROPOSALS"`
	WorkerConcurrency  int    `json:"worker_concurrency" envconfig:"RECON_QUEUE_WORKER_CONCURRENCY"`
	MonitoringPort     string `json:"monitoring_port" envconfig:"RECON_QUEUE_MONITORING_PORT"`
}

// MatchingConfig drives the auto-reconcile loop around the matching engine.
type MatchingConfig struct {
	AutoReconcileDeadlineSec int    `json:"auto_reconcile_deadline_sec" envconfig:"RECON_AUTO_RECONCILE_DEADLINE_SEC"`
	AutoReconcileBatchSize   int    `json:"auto_reconcile_batch_size" envconfig:"RECON_AUTO_RECONCILE_BATCH_SIZE"`
	AutoReconcileSchedule    string `json:"auto_reconcile_schedule" envconfig:"RECON_AUTO_RECONCILE_SCHEDULE"`
	RuleCacheTTLSec          int    `json:"rule_cache_ttl_sec" envconfig:"RECON_RULE_CACHE_TTL_SEC"`
	LockTimeoutSec           int    `json:"lock_timeout_sec" envconfig:"RECON_LOCK_TIMEOUT_SEC"`
}

func (m MatchingConfig) Deadline() time.Duration {
	return time.Duration(m.AutoReconcileDeadlineSec) * time.Second
}

func (m MatchingConfig) RuleCacheTTL() time.Duration {
	return time.Duration(m.RuleCacheTTLSec) * time.Second
}

func (m MatchingConfig) LockTimeout() time.Duration {
	return time.Duration(m.LockTimeoutSec) * time.Second
}

type OtelExporter struct {
	OtelExporterOtlpProtocol string `json:"otel_exporter_otlp_protocol" envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	OtelExporterOtlpEndpoint string `json:"otel_exporter_otlp_endpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpHeaders  string `json:"otel_exporter_otlp_headers" envconfig:"OTEL_EXPORTER_OTLP_HEADERS"`
}

type TelemetryConfig struct {
	EnableTracing bool         `json:"enable_tracing" envconfig:"RECON_ENABLE_TRACING"`
	PosthogKey    string       `json:"posthog_key" envconfig:"RECON_POSTHOG_KEY"`
	Exporter      OtelExporter `json:"exporter"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"RECON_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Queue        QueueConfig      `json:"queue"`
	Matching     MatchingConfig   `json:"matching"`
	Telemetry    TelemetryConfig  `json:"telemetry"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("recon", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called recon.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Recon Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.DataSource.addDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
		log.Printf("Warning: Rate limit cleanup interval not specified. Setting default value: %d seconds", defaultCleanup)
	}

	cnf.Queue.addDefaults()
	return cnf.Matching.validateAndAddDefaults()
}

func (d *DataSourceConfig) addDefaults() {
	if d.MaxOpenConns <= 0 {
		d.MaxOpenConns = 25
	}
	if d.MaxIdleConns <= 0 {
		d.MaxIdleConns = 10
	}
	if d.ConnMaxLifetime <= 0 {
		d.ConnMaxLifetime = 30 * time.Minute
	}
	if d.ConnMaxIdleTime <= 0 {
		d.ConnMaxIdleTime = 5 * time.Minute
	}
}

func (q *QueueConfig) addDefaults() {
	if q.AutoReconcileQueue == "" {
		q.AutoReconcileQueue = "auto_reconcile"
	}
	if q.ProposalQueue == "" {
		q.ProposalQueue = "match_proposals"
	}
	if q.WorkerConcurrency <= 0 {
		q.WorkerConcurrency = DEFAULT_WORKER_CONCURRENCY
	}
	if q.MonitoringPort == "" {
		q.MonitoringPort = DEFAULT_MONITORING_PORT
	}
}

func (m *MatchingConfig) validateAndAddDefaults() error {
	if m.AutoReconcileDeadlineSec < 0 || m.AutoReconcileBatchSize < 0 || m.RuleCacheTTLSec < 0 || m.LockTimeoutSec < 0 {
		return errors.New("matching settings must not be negative")
	}
	if m.AutoReconcileDeadlineSec == 0 {
		m.AutoReconcileDeadlineSec = DEFAULT_AUTO_RECONCILE_DEADLINE_SEC
	}
	if m.AutoReconcileBatchSize == 0 {
		m.AutoReconcileBatchSize = DEFAULT_AUTO_RECONCILE_BATCH_SIZE
	}
	if strings.TrimSpace(m.AutoReconcileSchedule) == "" {
		m.AutoReconcileSchedule = DEFAULT_AUTO_RECONCILE_SCHEDULE
	}
	if m.RuleCacheTTLSec == 0 {
		m.RuleCacheTTLSec = DEFAULT_RULE_CACHE_TTL_SEC
	}
	if m.LockTimeoutSec == 0 {
		m.LockTimeoutSec = DEFAULT_LOCK_TIMEOUT_SEC
	}
	// The lock must outlive the run it guards.
	if m.LockTimeoutSec < m.AutoReconcileDeadlineSec {
		log.Printf("Warning: lock timeout %ds is shorter than the auto-reconcile deadline. Raising it to %ds", m.LockTimeoutSec, 2*m.AutoReconcileDeadlineSec)
		m.LockTimeoutSec = 2 * m.AutoReconcileDeadlineSec
	}
	return nil
}

// SetOtelExporterEnvs exports the configured OTLP settings so the exporter picks them up.
func SetOtelExporterEnvs() error {
	cnf, err := Fetch()
	if err != nil {
		return err
	}
	envs := map[string]string{
		"OTEL_EXPORTER_OTLP_PROTOCOL": cnf.Telemetry.Exporter.OtelExporterOtlpProtocol,
		"OTEL_EXPORTER_OTLP_ENDPOINT": cnf.Telemetry.Exporter.OtelExporterOtlpEndpoint,
		"OTEL_EXPORTER_OTLP_HEADERS":  cnf.Telemetry.Exporter.OtelExporterOtlpHeaders,
	}
	for key, value := range envs {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
