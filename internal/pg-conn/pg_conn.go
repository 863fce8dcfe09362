package pgconn

import (
	"database/sql"
	"errors"
	"time"

	"github.com/blnkfinance/recon/config"
	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq" // Import the postgres driver
	"github.com/sirupsen/logrus"
)

// ConnectDB opens a pooled PostgreSQL connection and pings it.
// When ConnectRetry is set, failed pings are retried with exponential backoff for up to that long,
// which lets the workers start before the database is ready.
//
// Parameters:
// - dsConfig config.DataSourceConfig: The DSN, pool settings and retry budget.
//
// Returns:
// - *sql.DB: The connection pool.
// - error: If the DSN is empty or the database stays unreachable.
func ConnectDB(dsConfig config.DataSourceConfig) (*sql.DB, error) {
	if dsConfig.Dns == "" {
		return nil, errors.New("data source DNS is required")
	}

	db, err := sql.Open("postgres", dsConfig.Dns)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dsConfig.MaxOpenConns)
	db.SetMaxIdleConns(dsConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dsConfig.ConnMaxLifetime)
	db.SetConnMaxIdleTime(dsConfig.ConnMaxIdleTime)

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if dsConfig.ConnectRetry > 0 {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = dsConfig.ConnectRetry
		policy = b
	}

	err = backoff.RetryNotify(db.Ping, policy, func(err error, next time.Duration) {
		logrus.WithError(err).Warnf("database not reachable, retrying in %s", next)
	})
	if err != nil {
		logrus.WithError(err).Error("database connection error ❌")
		_ = db.Close()
		return nil, err
	}

	logrus.Info("database connection established ✅")
	return db, nil
}
