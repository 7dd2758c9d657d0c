package sms

import (
	"context"
	"errors"
	"strings"
)

// MessageType tells carriers how to route a message. Redemption codes are
// always transactional.
type MessageType string

const (
	MessageTransactional MessageType = "transactional"
	MessagePromotional   MessageType = "promotional"
)

var (
	ErrMissingRecipient = errors.New("sms: recipient is required")
	ErrEmptyMessage     = errors.New("sms: message body is empty")
)

type SMSProvider interface {
	SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error)
}

type SMSRequest struct {
	To      string      `json:"to"`
	From    string      `json:"from"`
	Message string      `json:"message"`
	Type    MessageType `json:"type"`
}

type SMSResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func (r *SMSRequest) validate() error {
	if strings.TrimSpace(r.To) == "" {
		return ErrMissingRecipient
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

func failed(err error) *SMSResponse {
	return &SMSResponse{Status: "failed", Error: err.Error()}
}
