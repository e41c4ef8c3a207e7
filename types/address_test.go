package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "system program", input: "11111111111111111111111111111111"},
		{name: "lookup table program", input: "AddressLookupTab1e1111111111111111111111111"},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "1111", wantErr: true},
		{name: "invalid alphabet", input: "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && addr.String() != tt.input {
				t.Errorf("round trip = %s, want %s", addr.String(), tt.input)
			}
		})
	}
}

func TestAddress_ZeroIsSystemProgram(t *testing.T) {
	addr := MustParseAddress("11111111111111111111111111111111")
	if !addr.IsZero() {
		t.Error("system program id must be the zero address")
	}
}

func TestAddress_TextMarshaling(t *testing.T) {
	addr := MustParseAddress("AddressLookupTab1e1111111111111111111111111")

	data, err := json.Marshal(map[string]Address{"table": addr})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"table":"AddressLookupTab1e1111111111111111111111111"}` {
		t.Errorf("unexpected json %s", data)
	}

	var decoded map[string]Address
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["table"] != addr {
		t.Error("decoded address differs")
	}
}

func TestSDKError_Is(t *testing.T) {
	err := fmt.Errorf("build: %w", NewEncodingError("payload too large: %d", 2048))
	if !errors.Is(err, ErrEncoding) {
		t.Error("expected errors.Is to match by kind")
	}
	if errors.Is(err, ErrProofNotFound) {
		t.Error("different kinds must not match")
	}
	if KindOf(err) != KindEncoding {
		t.Errorf("KindOf() = %s", KindOf(err))
	}
}
