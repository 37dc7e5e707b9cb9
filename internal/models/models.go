// Package models defines the data structures shared by the intake orchestrator,
// its stores, transports and the admin API.
package models

import (
	"strings"
	"time"
)

// InboundEvent is a normalized message received from any messaging channel.
type InboundEvent struct {
	ID               string    `json:"id"`                           // transport message id, used for redelivery dedup
	Channel          string    `json:"channel,omitempty"`            // zapi, twilio or whatsmeow
	Phone            string    `json:"phone"`                        // digits only, country code included
	FromMe           bool      `json:"from_me,omitempty"`            // echo of an outbound message
	Text             string    `json:"text,omitempty"`
	AudioURL         string    `json:"audio_url,omitempty"`
	AudioContentType string    `json:"audio_content_type,omitempty"`
	AudioData        []byte    `json:"-"` // voice note already downloaded by the transport
	ReceivedAt       time.Time `json:"received_at"`
}

// HasAudio reports whether the event carries a voice note instead of text.
// A content type without URL or data marks a voice note the transport failed to fetch.
func (e InboundEvent) HasAudio() bool {
	return e.AudioURL != "" || len(e.AudioData) > 0 || strings.HasPrefix(e.AudioContentType, "audio/")
}

// APIStatus is the status field of every admin API and webhook response.
type APIStatus string

const (
	APIStatusOK       APIStatus = "ok"
	APIStatusError    APIStatus = "error"
	APIStatusAccepted APIStatus = "accepted" // webhook queued for asynchronous processing
)

// APIResponse is the {status, message, result} envelope.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success wraps result in an ok envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// SuccessWithMessage is Success with an explanatory message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message, Result: result}
}

func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}

// Accepted acknowledges a webhook delivery before it is processed.
func Accepted() APIResponse {
	return APIResponse{Status: APIStatusAccepted}
}
