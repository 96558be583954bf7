/*
Copyright 2024 Fieldsync Authors.

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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fieldcrew/fieldsync"
	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/database"
	"github.com/fieldcrew/fieldsync/internal/notification"
)

// Fieldsync is the command-line entry point.
type Fieldsync struct {
	cmd *cobra.Command
}

// fieldsyncInstance is shared by every subcommand once preRun has loaded it.
type fieldsyncInstance struct {
	fieldsync *fieldsync.Fieldsync
	cnf       *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

func preRun(app *fieldsyncInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		f, err := setupFieldsync(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.fieldsync = f
		app.cnf = cnf
		return nil
	}
}

func setupFieldsync(cfg *config.Configuration) (*fieldsync.Fieldsync, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	f, err := fieldsync.NewFieldsync(db)
	if err != nil {
		return nil, fmt.Errorf("error creating fieldsync agent: %v", err)
	}
	return f, nil
}

func NewCLI() *Fieldsync {
	var configFile string
	f := &fieldsyncInstance{}

	var rootCmd = &cobra.Command{
		Use:   "fieldsync",
		Short: "Offline-first sync agent for field crews",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./fieldsync.json", "Configuration file for the fieldsync agent")
	rootCmd.PersistentPreRunE = preRun(f, &configFile)

	rootCmd.AddCommand(serverCommands(f))
	rootCmd.AddCommand(workerCommands(f))
	rootCmd.AddCommand(migrateCommands(f))
	rootCmd.AddCommand(queueCommands(f))
	rootCmd.AddCommand(configCommands(f))

	return &Fieldsync{cmd: rootCmd}
}

func (w Fieldsync) executeCLI() {
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
