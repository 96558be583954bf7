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

	"github.com/fieldcrew/fieldsync/internal/apierror"
	"github.com/fieldcrew/fieldsync/model"
)

const ticketColumns = `ticket_id, client_ref, project_id, user_id, created_by, transport_name, departure_station,
		arrival_station, seat_number, departure_time, ticket_file_url, created_at`

func scanTicket(row rowScanner) (model.TravelTicket, error) {
	var t model.TravelTicket
	var clientRef, userID, departure, arrival, seat, fileURL sql.NullString
	err := row.Scan(&t.ID, &clientRef, &t.ProjectID, &userID, &t.CreatedBy, &t.TransportName, &departure,
		&arrival, &seat, &t.DepartureTime, &fileURL, &t.CreatedAt)
	if err != nil {
		return model.TravelTicket{}, err
	}
	t.ClientRef = clientRef.String
	t.UserID = userID.String
	t.DepartureStation = departure.String
	t.ArrivalStation = arrival.String
	t.SeatNumber = seat.String
	t.TicketFileURL = fileURL.String
	return t, nil
}

// InsertTravelTicket stores a ticket. A repeat with the same client_ref returns
// the ticket already stored.
func (d Datasource) InsertTravelTicket(ctx context.Context, t model.TravelTicket) (model.TravelTicket, error) {
	t.ID = model.GenerateUUIDWithSuffix("tkt")
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO fieldsync.logistics_tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, nullString(t.ClientRef), t.ProjectID, nullString(t.UserID), t.CreatedBy, t.TransportName,
		nullString(t.DepartureStation), nullString(t.ArrivalStation), nullString(t.SeatNumber), t.DepartureTime,
		nullString(t.TicketFileURL), t.CreatedAt)
	if err != nil {
		if t.ClientRef != "" && isClientRefViolation(err) {
			existing, getErr := d.GetTravelTicketByClientRef(ctx, t.ClientRef)
			if getErr != nil {
				return model.TravelTicket{}, getErr
			}
			return *existing, nil
		}
		return model.TravelTicket{}, wrapError(err, "failed to add ticket")
	}
	return t, nil
}

func (d Datasource) GetTravelTicketByClientRef(ctx context.Context, clientRef string) (*model.TravelTicket, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+ticketColumns+`
		FROM fieldsync.logistics_tickets
		WHERE client_ref = $1
	`, clientRef)

	t, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Ticket not found", err)
		}
		return nil, wrapError(err, "failed to retrieve ticket")
	}
	return &t, nil
}

// GetTravelTicketsByProject returns a project's tickets by departure time.
func (d Datasource) GetTravelTicketsByProject(ctx context.Context, projectID string) ([]model.TravelTicket, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM fieldsync.logistics_tickets
		WHERE project_id = $1
		ORDER BY departure_time ASC
	`, projectID)
	if err != nil {
		return nil, wrapError(err, "failed to retrieve tickets")
	}
	defer rows.Close()

	tickets := []model.TravelTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, wrapError(err, "failed to scan ticket data")
		}
		tickets = append(tickets, t)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapError(err, "error occurred while iterating over tickets")
	}
	return tickets, nil
}
