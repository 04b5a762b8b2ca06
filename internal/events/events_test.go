package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEncode_FillsDefaults(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	e := Event{Subject: SubjectMemberAdded, TenantID: tenantID, UserID: &userID}

	data, err := Encode(&e)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if e.ID == uuid.Nil || e.Timestamp.IsZero() {
		t.Errorf("defaults not filled: %+v", e)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["subject"] != SubjectMemberAdded || decoded["user_id"] != userID.String() {
		t.Errorf("decoded = %v", decoded)
	}
	if _, ok := decoded["subscription_id"]; ok {
		t.Error("empty subscription_id not omitted")
	}
}

func TestEncode_KeepsProvidedValues(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := Event{ID: id, Subject: SubjectTenantCreated, Timestamp: ts}

	if _, err := Encode(&e); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if e.ID != id || !e.Timestamp.Equal(ts) {
		t.Errorf("provided values overwritten: %+v", e)
	}
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), Event{Subject: SubjectTenantCreated}); err != nil {
		t.Errorf("Noop.Publish() error = %v", err)
	}
	p.Close()
}
