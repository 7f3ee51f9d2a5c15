package api

import (
	"encoding/xml"

	"github.com/pathakanu/pillMemo/internal/model"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// RemindersResponse is the JSON body of the list endpoint.
type RemindersResponse struct {
	Reminders []model.Reminder `json:"reminders"`
	Count     int              `json:"count"`
}

// twimlResponse is the TwiML body Twilio expects from a messaging webhook.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}
