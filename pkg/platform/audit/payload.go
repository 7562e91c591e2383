package audit

import "time"

// Payload is the JSON envelope an event travels in between the outbox and the
// materialized query table. Field names match Event so the two ends stay
// symmetric.
type Payload struct {
	ID             string `json:"ID"`
	Category       string `json:"Category"`
	Timestamp      string `json:"Timestamp"`
	Actor          string `json:"Actor,omitempty"`
	Subject        string `json:"Subject,omitempty"`
	Action         string `json:"Action"`
	AssetID        string `json:"AssetID,omitempty"`
	ListingID      string `json:"ListingID,omitempty"`
	CredentialID   string `json:"CredentialID,omitempty"`
	Amount         uint64 `json:"Amount,omitempty"`
	Fee            uint64 `json:"Fee,omitempty"`
	Reason         string `json:"Reason,omitempty"`
	RequestID      string `json:"RequestID,omitempty"`
	KeyFingerprint string `json:"KeyFingerprint,omitempty"`
}

// NewPayload flattens an event into its wire envelope.
func NewPayload(eventID string, event Event) Payload {
	return Payload{
		ID:             eventID,
		Category:       string(event.Category),
		Timestamp:      event.Timestamp.Format(time.RFC3339Nano),
		Actor:          string(event.Actor),
		Subject:        string(event.Subject),
		Action:         event.Action,
		AssetID:        event.AssetID,
		ListingID:      event.ListingID,
		CredentialID:   event.CredentialID,
		Amount:         event.Amount,
		Fee:            event.Fee,
		Reason:         event.Reason,
		RequestID:      event.RequestID,
		KeyFingerprint: event.KeyFingerprint,
	}
}
