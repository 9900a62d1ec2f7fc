package models

import (
	"errors"
	"testing"
	"time"
)

const testCA = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func TestIncomingMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		message *IncomingMessage
		wantErr bool
	}{
		{
			name:    "valid channel message",
			message: &IncomingMessage{SourceID: "-1001234", SourceKind: SourceChannel, Text: "gm"},
		},
		{
			name:    "empty text and no buttons is still valid",
			message: &IncomingMessage{SourceID: "42", SourceKind: SourceUser},
		},
		{
			name:    "nil message",
			message: nil,
			wantErr: true,
		},
		{
			name:    "missing source id",
			message: &IncomingMessage{SourceKind: SourceGroup, Text: "hello"},
			wantErr: true,
		},
		{
			name:    "unknown source kind",
			message: &IncomingMessage{SourceID: "42", SourceKind: "forum"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("IncomingMessage.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var inputErr *InputError
				if !errors.As(err, &inputErr) {
					t.Errorf("expected *InputError, got %T", err)
				}
			}
		})
	}
}

func TestCandidateAddressValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate CandidateAddress
		wantErr   bool
	}{
		{"valid 44 chars", CandidateAddress{Value: testCA, Origin: OriginBodyText}, false},
		{"valid 32 chars", CandidateAddress{Value: "mPfYetW5v6JXmj54omLidkuVKnRyjP2W", Origin: OriginButtonURL}, false},
		{"too short", CandidateAddress{Value: "MASi45ub7Qe4ZE36UT5G6cU4ud8Fhh", Origin: OriginBodyText}, true},
		{"too long", CandidateAddress{Value: "rMWeWQLGsCmrG6dLaYyNoVKf58ZTBqNAYT3j5qcdsyuMN", Origin: OriginBodyText}, true},
		{"contains zero", CandidateAddress{Value: "0xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", Origin: OriginBodyText}, true},
		{"bad origin", CandidateAddress{Value: testCA, Origin: "footer"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candidate.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("CandidateAddress.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHintSet(t *testing.T) {
	var s HintSet
	if !s.Empty() {
		t.Fatal("zero HintSet should be empty")
	}
	if got := s.Tokens(); len(got) != 0 {
		t.Errorf("expected no tokens, got %v", got)
	}

	s = s.Add(HintBirdeye).Add(HintPumpFun).Add(HintBirdeye)
	if !s.Has(HintPumpFun) || !s.Has(HintBirdeye) {
		t.Errorf("expected pumpfun and birdeye in set, got %s", s)
	}
	if s.Has(HintMoonshot) {
		t.Error("moonshot should not be in set")
	}
	if s.String() != "pumpfun,birdeye" {
		t.Errorf("expected precedence order, got %q", s.String())
	}

	data, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(data) != `["pumpfun","birdeye"]` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestDetectionValidate(t *testing.T) {
	valid := Detection{
		ID:         "det-1",
		Address:    testCA,
		Origin:     OriginBodyText,
		Platform:   PlatformPumpFun,
		SourceID:   "-1001",
		SourceKind: SourceChannel,
		DetectedAt: time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(d *Detection)
		wantErr bool
	}{
		{"valid detection", func(d *Detection) {}, false},
		{"empty id", func(d *Detection) { d.ID = "" }, true},
		{"bad platform", func(d *Detection) { d.Platform = "Jupiter" }, true},
		{"bad address", func(d *Detection) { d.Address = "short" }, true},
		{"missing source", func(d *Detection) { d.SourceID = "" }, true},
		{"future timestamp", func(d *Detection) { d.DetectedAt = time.Now().Add(time.Hour) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Detection.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourceLabel(t *testing.T) {
	msg := IncomingMessage{SourceID: "-1001", SourceKind: SourceChannel, SourceTitle: "Alpha Calls"}
	if got := msg.SourceLabel(); got != "Alpha Calls (Channel)" {
		t.Errorf("unexpected label %q", got)
	}
	msg.SourceTitle = ""
	if got := msg.SourceLabel(); got != "-1001 (Channel)" {
		t.Errorf("unexpected fallback label %q", got)
	}
}

func TestNotificationPayload(t *testing.T) {
	d := Detection{Address: testCA, Platform: PlatformNative}

	owner := Notification{Recipient: RecipientOwner, Detection: d}
	if got, ok := owner.Payload().(Detection); !ok || got.Address != testCA {
		t.Errorf("owner payload should be the detection, got %#v", owner.Payload())
	}

	target := Notification{Recipient: RecipientTarget, Address: testCA}
	if got := target.Payload(); got != testCA {
		t.Errorf("target payload should be the bare address, got %#v", got)
	}
}

func TestTogglesPlatformEnabled(t *testing.T) {
	toggles := DefaultToggles()
	toggles.Moonshot = false
	toggles.Birdeye = false

	tests := []struct {
		platform Platform
		expected bool
	}{
		{PlatformPumpFun, true},
		{PlatformMoonshot, false},
		{PlatformRaydium, true},
		{PlatformNative, true},
		{PlatformUnknown, false},
		{Platform("bogus"), false},
	}

	for _, tt := range tests {
		if got := toggles.PlatformEnabled(tt.platform); got != tt.expected {
			t.Errorf("PlatformEnabled(%s) = %v, expected %v", tt.platform, got, tt.expected)
		}
	}

	if !toggles.MonitorsKind(SourceGroup) || toggles.MonitorsKind(SourceKind("bot")) {
		t.Error("unexpected MonitorsKind result")
	}
}
