package solana

import (
	"encoding/json"
	"testing"
)

func TestAccountKey_UnmarshalBothShapes(t *testing.T) {
	// jsonParsed object shape
	var parsed AccountKey
	if err := json.Unmarshal([]byte(`{"pubkey":"Key1","signer":true,"writable":false}`), &parsed); err != nil {
		t.Fatalf("Unmarshal object shape: %v", err)
	}
	if parsed.Pubkey != "Key1" || !parsed.Signer || parsed.Writable {
		t.Errorf("Object shape mismatch: %+v", parsed)
	}

	// legacy bare-string shape
	var legacy AccountKey
	if err := json.Unmarshal([]byte(`"Key2"`), &legacy); err != nil {
		t.Fatalf("Unmarshal string shape: %v", err)
	}
	if legacy.Pubkey != "Key2" {
		t.Errorf("String shape mismatch: %+v", legacy)
	}
}

func TestInstruction_RawPayload(t *testing.T) {
	accountKeys := []AccountKey{
		{Pubkey: "Payer"},
		{Pubkey: "Prog1"},
	}

	t.Run("explicit program id", func(t *testing.T) {
		in := Instruction{ProgramID: "ProgX", Data: "54abc"}
		programID, data, ok := in.RawPayload(accountKeys)
		if !ok || programID != "ProgX" || data != "54abc" {
			t.Errorf("Got (%s, %s, %v)", programID, data, ok)
		}
	})

	t.Run("legacy index", func(t *testing.T) {
		idx := 1
		in := Instruction{ProgramIDIndex: &idx, Data: "jzAbc"}
		programID, data, ok := in.RawPayload(accountKeys)
		if !ok || programID != "Prog1" || data != "jzAbc" {
			t.Errorf("Got (%s, %s, %v)", programID, data, ok)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		idx := 5
		in := Instruction{ProgramIDIndex: &idx, Data: "jzAbc"}
		if _, _, ok := in.RawPayload(accountKeys); ok {
			t.Error("Out-of-range index should not resolve")
		}
	})

	t.Run("parsed instruction has no payload", func(t *testing.T) {
		in := Instruction{Program: "spl-token", Parsed: []byte(`{}`), Data: "54abc"}
		if _, _, ok := in.RawPayload(accountKeys); ok {
			t.Error("Parsed instructions carry no raw payload")
		}
	})

	t.Run("no data", func(t *testing.T) {
		in := Instruction{ProgramID: "ProgX"}
		if _, _, ok := in.RawPayload(accountKeys); ok {
			t.Error("Empty data should not resolve")
		}
	})
}

func TestInstruction_PayloadBytes(t *testing.T) {
	// base58 "3UjL" style payloads decode to raw bytes
	in := Instruction{Data: "2g"} // base58 for 0x61
	raw := in.PayloadBytes()
	if len(raw) != 1 || raw[0] != 0x61 {
		t.Errorf("PayloadBytes mismatch: %v", raw)
	}

	bad := Instruction{Data: "0OIl"} // invalid base58 alphabet
	if bad.PayloadBytes() != nil {
		t.Error("Invalid base58 should return nil")
	}
}

func TestTransactionMessage_Signer(t *testing.T) {
	msg := &TransactionMessage{AccountKeys: []AccountKey{{Pubkey: "Payer"}, {Pubkey: "Other"}}}
	if msg.Signer() != "Payer" {
		t.Errorf("Signer mismatch: %s", msg.Signer())
	}

	var nilMsg *TransactionMessage
	if nilMsg.Signer() != "" {
		t.Error("Nil message should have empty signer")
	}

	empty := &TransactionMessage{}
	if empty.Signer() != "" {
		t.Error("Empty account list should have empty signer")
	}
}
