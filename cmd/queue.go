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
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		log.Fatalf("Error printing result: %v\n", err)
	}
	fmt.Println(string(data))
}

// queueCommands inspects and drives the offline upload queue of this device.
func queueCommands(f *fieldsyncInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "inspect the offline upload queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list pending tasks",
		Run: func(cmd *cobra.Command, args []string) {
			if err := f.fieldsync.Queue().Refresh(context.Background()); err != nil {
				log.Fatal(err)
			}
			printJSON(f.fieldsync.Queue().Tasks())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "replay",
		Short: "replay pending tasks now",
		Run: func(cmd *cobra.Command, args []string) {
			result, err := f.fieldsync.Queue().Replay(context.Background())
			if err != nil {
				log.Fatal(err)
			}
			printJSON(result)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "dropped",
		Short: "list tasks that exhausted their retries",
		Run: func(cmd *cobra.Command, args []string) {
			dropped, err := f.fieldsync.Queue().Dropped(context.Background())
			if err != nil {
				log.Fatal(err)
			}
			printJSON(dropped)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "requeue [task id]",
		Short: "move a dropped task back into the queue",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := f.fieldsync.Queue().Requeue(context.Background(), args[0]); err != nil {
				log.Fatal(err)
			}
			fmt.Printf("Requeued %s\n", args[0])
		},
	})

	return cmd
}
