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

package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type ScheduleType string

const (
	ScheduleWorkShift ScheduleType = "work_shift"
	ScheduleTravelDay ScheduleType = "travel_day"
	ScheduleOffDay    ScheduleType = "off_day"
)

const (
	scheduleDateLayout = "2006-01-02"
	scheduleTimeLayout = "15:04"
)

type ScheduleItem struct {
	ID           string       `json:"id"`
	ClientRef    string       `json:"client_ref,omitempty"`
	ProjectID    string       `json:"project_id"`
	UserID       string       `json:"user_id"`
	Date         string       `json:"date"`
	Type         ScheduleType `json:"type"`
	StartTime    string       `json:"start_time,omitempty"`
	EndTime      string       `json:"end_time,omitempty"`
	LocationName string       `json:"location_name,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func layoutRule(layout, hint string) validation.RuleFunc {
	return func(value interface{}) error {
		s, ok := value.(string)
		if !ok {
			return errors.New("must be a string")
		}
		if _, err := time.Parse(layout, s); err != nil {
			return errors.New("please format as " + hint)
		}
		return nil
	}
}

func (s *ScheduleItem) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.ProjectID, validation.Required),
		validation.Field(&s.UserID, validation.Required),
		validation.Field(&s.Date, validation.Required, validation.By(layoutRule(scheduleDateLayout, "YYYY-MM-DD"))),
		validation.Field(&s.Type, validation.Required, validation.In(ScheduleWorkShift, ScheduleTravelDay, ScheduleOffDay)),
		validation.Field(&s.StartTime, validation.When(s.StartTime != "", validation.By(layoutRule(scheduleTimeLayout, "HH:MM")))),
		validation.Field(&s.EndTime, validation.When(s.EndTime != "", validation.By(layoutRule(scheduleTimeLayout, "HH:MM")))),
	)
}
