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
	"fmt"
	"log"

	"github.com/blnkfinance/recon"
	"github.com/blnkfinance/recon/config"
	pgconn "github.com/blnkfinance/recon/internal/pg-conn"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

func migrationSource() migrate.EmbedFileSystemMigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: recon.SQLFiles,
		Root:       "sql",
	}
}

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(_ *reconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back the recon schema",
	}

	cmd.AddCommand(migrateCommand("up", migrate.Up, "Applied"))
	cmd.AddCommand(migrateCommand("down", migrate.Down, "Rolled back"))

	return cmd
}

func migrateCommand(use string, direction migrate.MigrationDirection, verb string) *cobra.Command {
	return &cobra.Command{
		Use: use,
		Run: func(cmd *cobra.Command, args []string) {
			cnf, err := config.Fetch()
			if err != nil {
				log.Printf("Error fetching config: %v", err)
				return
			}

			db, err := pgconn.ConnectDB(cnf.DataSource)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer func() { _ = db.Close() }()

			// The migration table lives in the recon schema, so it must exist first.
			if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS recon`); err != nil {
				log.Printf("Error creating schema: %v", err)
				return
			}
			migrate.SetSchema("recon")

			n, err := migrate.Exec(db, "postgres", migrationSource(), direction)
			if err != nil {
				log.Printf("Error migrating %s: %v", use, err)
				return
			}
			fmt.Printf("%s %d migrations!\n", verb, n)
		},
	}
}
