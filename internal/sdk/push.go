package sdk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RecordKind discriminates the variants of a decoded push record.
type RecordKind int

const (
	RecordUnknown RecordKind = iota
	RecordMessage
	RecordScan
)

// String returns the string representation of a RecordKind.
func (k RecordKind) String() string {
	switch k {
	case RecordMessage:
		return "message"
	case RecordScan:
		return "scan"
	default:
		return "unknown"
	}
}

// PushRecord is the tagged union of everything the automation process pushes
// to the registered hook. Exactly one of Message/Scan is non-nil for the
// corresponding kind; both are nil for RecordUnknown.
type PushRecord struct {
	Kind    RecordKind
	Message *RecvMsg
	Scan    *RecvScanRecord
	Raw     json.RawMessage
}

// pushEnvelope is the outer frame of a push payload.
type pushEnvelope struct {
	Data     json.RawMessage `json:"data"`
	PushTime int64           `json:"pushTime"`
	PushType int             `json:"pushType"`
}

// probe holds the discriminator fields read before committing to a variant.
// A scan record carries a "scan" substring in desc and no type code; a
// message record always carries a numeric type.
type probe struct {
	Desc  *string      `json:"desc"`
	State *int         `json:"state"`
	Type  *json.Number `json:"type"`
}

// DecodePushRecord validates and classifies one raw push payload. Malformed
// JSON is an error; a well-formed payload matching neither variant decodes
// to RecordUnknown so the caller can drop it with diagnostics.
func DecodePushRecord(body []byte) (*PushRecord, error) {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode push envelope: %w", err)
	}

	data := env.Data
	if len(data) == 0 {
		// Some SDK builds push the record without the envelope.
		data = body
	}

	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode push record: %w", err)
	}

	switch {
	case p.Desc != nil && strings.Contains(*p.Desc, "scan"):
		var scan RecvScanRecord
		if err := json.Unmarshal(data, &scan); err != nil {
			return nil, fmt.Errorf("decode scan record: %w", err)
		}
		return &PushRecord{Kind: RecordScan, Scan: &scan, Raw: data}, nil

	case p.Type != nil:
		var msg RecvMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode message record: %w", err)
		}
		return &PushRecord{Kind: RecordMessage, Message: &msg, Raw: data}, nil

	default:
		return &PushRecord{Kind: RecordUnknown, Raw: data}, nil
	}
}
