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

package database

import (
	"database/sql"
	"sync"
	"time"

	"github.com/blnkfinance/recon/config"
	"github.com/blnkfinance/recon/internal/cache"
	pgconn "github.com/blnkfinance/recon/internal/pg-conn"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

// Datasource is the PostgreSQL implementation of IDataSource.
// Cache is optional; without it rule sets are read from the database on every call.
type Datasource struct {
	StatementLines
	Conn         *sql.DB
	Cache        cache.Cache
	RuleCacheTTL time.Duration
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := pgconn.ConnectDB(configuration.DataSource)
		if errConn != nil {
			err = errConn
			return
		}

		newCache, errCache := cache.NewCache()
		if errCache != nil {
			_ = con.Close()
			err = errCache
			return
		}

		instance = &Datasource{Conn: con, Cache: newCache, RuleCacheTTL: configuration.Matching.RuleCacheTTL()}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}
