package service

import (
	"context"
	"log"
)

// SMSNotifier delivers one-time codes to phones.
type SMSNotifier struct {
	// In a real deployment this would hold an SMS gateway client
	// (Twilio or similar). The default implementation logs.
}

// NewSMSNotifier creates a new SMSNotifier.
func NewSMSNotifier() *SMSNotifier {
	return &SMSNotifier{}
}

// SendOTP delivers a login code to the given phone number.
func (n *SMSNotifier) SendOTP(ctx context.Context, phone, code string) error {
	log.Printf("[SMS] to=%s login code=%s", phone, code)
	return nil
}
