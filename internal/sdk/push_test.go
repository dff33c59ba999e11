package sdk

import (
	"testing"
)

func TestDecodePushRecord_Scan(t *testing.T) {
	body := []byte(`{"data":{"desc":"scan qrcode","state":1,"step":1,"uuid":"u1","nickName":"Alice"},"pushTime":1714000000,"pushType":1}`)

	rec, err := DecodePushRecord(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Kind != RecordScan {
		t.Fatalf("kind: %s", rec.Kind)
	}
	if rec.Scan == nil || rec.Scan.State != 1 || rec.Scan.UUID != "u1" {
		t.Errorf("scan record: %+v", rec.Scan)
	}
	if rec.Message != nil {
		t.Error("message should be nil for scan records")
	}
}

func TestDecodePushRecord_Message(t *testing.T) {
	body := []byte(`{"data":{"type":1,"content":"hi","from":"wxid_a","to":"wxid_b","msgSvrID":123}}`)

	rec, err := DecodePushRecord(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Kind != RecordMessage {
		t.Fatalf("kind: %s", rec.Kind)
	}
	if rec.Message == nil || rec.Message.Type != 1 || rec.Message.Content != "hi" {
		t.Errorf("message record: %+v", rec.Message)
	}
}

func TestDecodePushRecord_BareRecord(t *testing.T) {
	// Some builds push the record without the outer envelope.
	body := []byte(`{"type":3,"content":"<msg/>","from":"wxid_a"}`)

	rec, err := DecodePushRecord(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Kind != RecordMessage || rec.Message.Type != 3 {
		t.Errorf("record: %+v", rec)
	}
}

func TestDecodePushRecord_Unknown(t *testing.T) {
	body := []byte(`{"data":{"something":"else"}}`)

	rec, err := DecodePushRecord(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Kind != RecordUnknown {
		t.Errorf("kind: %s", rec.Kind)
	}
	if rec.Message != nil || rec.Scan != nil {
		t.Error("both variants should be nil for unknown records")
	}
}

func TestDecodePushRecord_DescWithoutScan(t *testing.T) {
	// A desc that never mentions scanning must not classify as a scan
	// record; without a type code it stays unknown.
	body := []byte(`{"data":{"desc":"something happened","state":2}}`)

	rec, err := DecodePushRecord(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Kind != RecordUnknown {
		t.Errorf("kind: %s", rec.Kind)
	}
}

func TestDecodePushRecord_Malformed(t *testing.T) {
	if _, err := DecodePushRecord([]byte(`{not json`)); err == nil {
		t.Error("want error for malformed body")
	}
}
