package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func u16Ptr(v uint16) *uint16 { return &v }

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	t.Parallel()

	env := Envelope{From: "laptop", To: "desk", CallID: "c1", PartyID: "p1"}

	tests := []struct {
		name    string
		msg     Message
		wantTyp string
	}{
		{
			name: "invite",
			msg: &InviteMessage{
				Envelope: env,
				Version:  Version,
				Lifetime: CallTimeoutMS,
				Offer:    SessionDescription{Type: "offer", SDP: "v=0\r\noffer"},
				StreamMetadata: map[string]StreamMetadata{
					"stream-1": {Purpose: PurposeUsermedia, AudioMuted: true},
				},
			},
			wantTyp: "invite",
		},
		{
			name: "answer",
			msg: &AnswerMessage{
				Envelope: env,
				Version:  Version,
				Answer:   SessionDescription{Type: "answer", SDP: "v=0\r\nanswer"},
			},
			wantTyp: "answer",
		},
		{
			name: "candidates",
			msg: &CandidatesMessage{
				Envelope: env,
				Version:  Version,
				Candidates: []Candidate{
					{
						Candidate:     "candidate:1 1 udp 2130706431 192.168.1.1 5000 typ host",
						SDPMid:        strPtr("0"),
						SDPMLineIndex: u16Ptr(0),
					},
					// End-of-candidates marker.
					{Candidate: "", SDPMid: strPtr("0"), SDPMLineIndex: u16Ptr(0)},
				},
			},
			wantTyp: "candidates",
		},
		{
			name: "negotiate",
			msg: &NegotiateMessage{
				Envelope:    env,
				Version:     Version,
				Description: &SessionDescription{Type: "offer", SDP: "v=0\r\nreoffer"},
			},
			wantTyp: "negotiate",
		},
		{
			name: "negotiate/metadata-only",
			msg: &NegotiateMessage{
				Envelope: env,
				Version:  Version,
				StreamMetadata: map[string]StreamMetadata{
					"stream-1": {Purpose: PurposeScreenshare, VideoMuted: true},
				},
			},
			wantTyp: "negotiate",
		},
		{
			name:    "hangup",
			msg:     &HangupMessage{Envelope: env, Version: Version, Reason: "user_hangup"},
			wantTyp: "hangup",
		},
		{
			name:    "join",
			msg:     &JoinMessage{PeerID: "laptop"},
			wantTyp: "join",
		},
		{
			name: "peers",
			msg: &PeersMessage{Peers: []PeerInfo{
				{PeerID: "laptop"},
				{PeerID: "desk"},
			}},
			wantTyp: "peers",
		},
		{
			name:    "peer-left",
			msg:     &PeerLeftMessage{PeerID: "laptop"},
			wantTyp: "peer-left",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Marshal
			data, err := Marshal(tt.msg)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}

			// Verify the "type" field is present in the JSON.
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(data, &raw); err != nil {
				t.Fatalf("unmarshaling raw JSON: %v", err)
			}
			typeVal, ok := raw["type"]
			if !ok {
				t.Fatal("marshaled JSON missing \"type\" field")
			}
			var gotType string
			if err := json.Unmarshal(typeVal, &gotType); err != nil {
				t.Fatalf("decoding type field: %v", err)
			}
			if gotType != tt.wantTyp {
				t.Errorf("type = %q, want %q", gotType, tt.wantTyp)
			}

			// Unmarshal back.
			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}

			// Re-marshal the round-tripped message and compare normalized JSON
			// to avoid reflect.DeepEqual on pointer types.
			gotData, err := Marshal(got)
			if err != nil {
				t.Fatalf("re-marshaling: %v", err)
			}

			var origMap, gotMap map[string]any
			if err := json.Unmarshal(data, &origMap); err != nil {
				t.Fatalf("decoding original: %v", err)
			}
			if err := json.Unmarshal(gotData, &gotMap); err != nil {
				t.Fatalf("decoding round-tripped: %v", err)
			}

			origJSON, _ := json.Marshal(origMap)
			gotJSON, _ := json.Marshal(gotMap)
			if string(origJSON) != string(gotJSON) {
				t.Errorf("round-trip mismatch:\n  original:      %s\n  round-tripped: %s", origJSON, gotJSON)
			}
		})
	}
}

func TestUnmarshal_UnknownType(t *testing.T) {
	t.Parallel()

	data := []byte(`{"type":"unknown-type","foo":"bar"}`)
	_, err := Unmarshal(data)
	if err == nil {
		t.Fatal("expected error for unknown message kind, got nil")
	}
	if !strings.Contains(err.Error(), "unrecognized message kind") {
		t.Errorf("error = %q, want it to contain \"unrecognized message kind\"", err.Error())
	}
}

func TestUnmarshal_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := Unmarshal([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestUnmarshal_MissingType(t *testing.T) {
	t.Parallel()

	data := []byte(`{"call_id":"c1","party_id":"p1"}`)
	_, err := Unmarshal(data)
	if err == nil {
		t.Fatal("expected error for missing type field, got nil")
	}
	// An empty kind is not a known kind, so this fails like any unknown one.
	if !strings.Contains(err.Error(), "unrecognized message kind") {
		t.Errorf("error = %q, want it to contain \"unrecognized message kind\"", err.Error())
	}
}

func TestMessageType_Values(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg     Message
		wantTyp string
	}{
		{&InviteMessage{}, "invite"},
		{&AnswerMessage{}, "answer"},
		{&CandidatesMessage{}, "candidates"},
		{&NegotiateMessage{}, "negotiate"},
		{&HangupMessage{}, "hangup"},
		{&JoinMessage{}, "join"},
		{&PeersMessage{}, "peers"},
		{&PeerLeftMessage{}, "peer-left"},
	}

	for _, tt := range tests {
		if got := tt.msg.MessageType(); got != tt.wantTyp {
			t.Errorf("%T.MessageType() = %q, want %q", tt.msg, got, tt.wantTyp)
		}
	}
}
