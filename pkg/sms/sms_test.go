package sms

import (
	"context"
	"errors"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  SMSRequest
		want error
	}{
		{name: "ok", req: SMSRequest{To: "+15550100", Message: "code 123456"}},
		{name: "no recipient", req: SMSRequest{To: " ", Message: "hi"}, want: ErrMissingRecipient},
		{name: "no body", req: SMSRequest{To: "+15550100"}, want: ErrEmptyMessage},
	}
	for _, tt := range tests {
		if err := tt.req.validate(); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestSNSAttributes(t *testing.T) {
	attrs := snsAttributes(&SMSRequest{From: "DealDrop", Type: MessageTransactional})
	if got := *attrs["AWS.SNS.SMS.SMSType"].StringValue; got != "Transactional" {
		t.Errorf("SMSType = %q", got)
	}
	if got := attrs["AWS.SNS.SMS.SenderID"].StringValue; got == nil || *got != "DealDrop" {
		t.Errorf("SenderID = %v", got)
	}

	for _, from := range []string{"", "+15550100", "12345", "TooLongSenderName"} {
		if _, ok := snsAttributes(&SMSRequest{From: from})["AWS.SNS.SMS.SenderID"]; ok {
			t.Errorf("sender id set for %q", from)
		}
	}

	if got := snsSMSType(MessagePromotional); got != "Promotional" {
		t.Errorf("promotional type = %q", got)
	}
}

func TestTwilioRejectsBeforeCalling(t *testing.T) {
	p := NewTwilioProvider("AC123", "token", "+15550100")

	resp, err := p.SendSMS(context.Background(), &SMSRequest{Message: "hi"})
	if !errors.Is(err, ErrMissingRecipient) || resp.Status != "failed" {
		t.Errorf("resp = %+v, err = %v", resp, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.SendSMS(ctx, &SMSRequest{To: "+15550101", Message: "hi"}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx err = %v", err)
	}

	if got := p.sender(""); got != "+15550100" {
		t.Errorf("default sender = %q", got)
	}
}
