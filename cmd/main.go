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
	"os"

	"github.com/blnkfinance/recon"
	"github.com/blnkfinance/recon/config"
	"github.com/blnkfinance/recon/database"
	"github.com/blnkfinance/recon/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Recon represents the CLI application, encapsulating the root Cobra command.
type Recon struct {
	cmd *cobra.Command
}

// reconInstance holds the matching service and its configuration for the commands.
type reconInstance struct {
	recon *recon.Recon
	cnf   *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration file and builds the matching service before any command runs.
func preRun(app *reconInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		// Migrations and config printing need no service.
		if !needsService(cmd) {
			app.cnf = cnf
			return nil
		}

		newRecon, err := setupRecon(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.recon = newRecon
		app.cnf = cnf
		return nil
	}
}

func needsService(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "migrate" || c.Name() == "config" {
			return false
		}
	}
	return true
}

func setupRecon(cfg *config.Configuration) (*recon.Recon, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newRecon, err := recon.NewRecon(db)
	if err != nil {
		return nil, fmt.Errorf("error creating recon: %v", err)
	}
	return newRecon, nil
}

// NewCLI creates the command-line interface with the server, workers, migrate and config commands.
func NewCLI() *Recon {
	var configFile string
	r := &reconInstance{}

	var rootCmd = &cobra.Command{
		Use:   "recon",
		Short: "Bank statement reconciliation engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./recon.json", "Configuration file for recon")
	rootCmd.PersistentPreRunE = preRun(r, &configFile)

	rootCmd.AddCommand(serverCommands(r))
	rootCmd.AddCommand(workerCommands(r))
	rootCmd.AddCommand(migrateCommands(r))
	rootCmd.AddCommand(configCommands())

	return &Recon{cmd: rootCmd}
}

func (w Recon) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
