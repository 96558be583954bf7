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
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// TravelTicket is a transport booking attached to a project. An empty UserID
// means the ticket covers everyone on the project.
type TravelTicket struct {
	ID               string    `json:"id"`
	ClientRef        string    `json:"client_ref,omitempty"`
	ProjectID        string    `json:"project_id"`
	UserID           string    `json:"user_id,omitempty"`
	CreatedBy        string    `json:"created_by"`
	TransportName    string    `json:"transport_name"`
	DepartureStation string    `json:"departure_station,omitempty"`
	ArrivalStation   string    `json:"arrival_station,omitempty"`
	SeatNumber       string    `json:"seat_number,omitempty"`
	DepartureTime    time.Time `json:"departure_time"`
	TicketFileURL    string    `json:"ticket_file_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// TicketPayload is what the user fills in on the add-ticket form. The ticket
// photo travels separately as the task's attachment.
type TicketPayload struct {
	ProjectID        string    `json:"project_id"`
	UserID           string    `json:"user_id,omitempty"`
	TransportName    string    `json:"transport_name"`
	DepartureStation string    `json:"departure_station,omitempty"`
	ArrivalStation   string    `json:"arrival_station,omitempty"`
	SeatNumber       string    `json:"seat_number,omitempty"`
	DepartureTime    time.Time `json:"departure_time"`
}

func (p *TicketPayload) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ProjectID, validation.Required),
		validation.Field(&p.TransportName, validation.By(func(value interface{}) error {
			s, _ := value.(string)
			return validation.Validate(strings.TrimSpace(s), validation.Required)
		})),
		validation.Field(&p.DepartureTime, validation.Required),
	)
}

func (p TicketPayload) ToTicket(createdBy, clientRef, fileURL string, createdAt time.Time) TravelTicket {
	return TravelTicket{
		ClientRef:        clientRef,
		ProjectID:        p.ProjectID,
		UserID:           p.UserID,
		CreatedBy:        createdBy,
		TransportName:    strings.TrimSpace(p.TransportName),
		DepartureStation: strings.TrimSpace(p.DepartureStation),
		ArrivalStation:   strings.TrimSpace(p.ArrivalStation),
		SeatNumber:       strings.TrimSpace(p.SeatNumber),
		DepartureTime:    p.DepartureTime,
		TicketFileURL:    fileURL,
		CreatedAt:        createdAt,
	}
}
