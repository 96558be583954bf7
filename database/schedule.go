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

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldcrew/fieldsync/model"
)

const scheduleDateLayout = "2006-01-02"

func (d Datasource) InsertScheduleItem(ctx context.Context, item model.ScheduleItem) (model.ScheduleItem, error) {
	item.ID = model.GenerateUUIDWithSuffix("sch")
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO fieldsync.schedule_items (schedule_id, client_ref, project_id, user_id, date, type,
			start_time, end_time, location_name, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, item.ID, nullString(item.ClientRef), item.ProjectID, item.UserID, item.Date, item.Type,
		nullString(item.StartTime), nullString(item.EndTime), nullString(item.LocationName), nullString(item.Notes), item.CreatedAt)
	if err != nil {
		return model.ScheduleItem{}, wrapError(err, "failed to create schedule item")
	}
	return item, nil
}

// GetScheduleByProject returns a project's schedule in calendar order.
func (d Datasource) GetScheduleByProject(ctx context.Context, projectID string) ([]model.ScheduleItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT schedule_id, client_ref, project_id, user_id, date, type, start_time, end_time,
			location_name, notes, created_at
		FROM fieldsync.schedule_items
		WHERE project_id = $1
		ORDER BY date ASC, start_time ASC
	`, projectID)
	if err != nil {
		return nil, wrapError(err, "failed to retrieve schedule")
	}
	defer rows.Close()

	items := []model.ScheduleItem{}
	for rows.Next() {
		var item model.ScheduleItem
		var date time.Time
		var clientRef, start, end, location, notes sql.NullString
		err := rows.Scan(&item.ID, &clientRef, &item.ProjectID, &item.UserID, &date, &item.Type, &start, &end,
			&location, &notes, &item.CreatedAt)
		if err != nil {
			return nil, wrapError(err, "failed to scan schedule data")
		}
		item.Date = date.Format(scheduleDateLayout)
		item.ClientRef = clientRef.String
		item.StartTime = start.String
		item.EndTime = end.String
		item.LocationName = location.String
		item.Notes = notes.String
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapError(err, "error occurred while iterating over schedule")
	}
	return items, nil
}
