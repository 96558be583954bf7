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
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/internal/push"
	redis_db "github.com/fieldcrew/fieldsync/internal/redis-db"
)

func initializeQueues(cfg *config.Configuration) map[string]int {
	return map[string]int{cfg.Queue.PushQueue: 1}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(redisOption, asynq.Config{
		Concurrency: 1,
		Queues:      queues,
	}), nil
}

func initializeTaskHandlers(cfg *config.Configuration, mux *asynq.ServeMux) {
	mux.HandleFunc(push.TaskRecordConfirmed, push.NewHandler(cfg.Notification.Push).ProcessTask)
}

// workerCommands starts the worker that delivers push notifications for
// records other devices confirmed.
func workerCommands(f *fieldsyncInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start fieldsync push workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := f.cnf
			if conf.Redis.Dns == "" {
				log.Fatal("redis is required to run workers")
			}

			shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			srv, err := initializeWorkerServer(conf, initializeQueues(conf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(conf, mux)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
