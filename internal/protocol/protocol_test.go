package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// TestEncode tests the Encode function with various inputs
func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		msgType       MessageType
		messageNumber uint32
		payload       []byte
		wantError     bool
	}{
		{
			name:          "request with payload",
			msgType:       TypeRequest,
			messageNumber: 1,
			payload:       []byte(`{"portId":1}`),
		},
		{
			name:          "ack with empty payload",
			msgType:       TypeStreamAck,
			messageNumber: 0x100,
			payload:       []byte{},
		},
		{
			name:          "nil payload",
			msgType:       TypeCreatePort,
			messageNumber: 7,
			payload:       nil,
		},
		{
			name:          "max message number",
			msgType:       TypeResponse,
			messageNumber: 0xFFFFFFFF,
			payload:       []byte("test"),
		},
		{
			name:          "payload at max size",
			msgType:       TypeResponse,
			messageNumber: 1,
			payload:       make([]byte, MaxPayloadSize),
		},
		{
			name:          "payload exceeds max size",
			msgType:       TypeResponse,
			messageNumber: 1,
			payload:       make([]byte, MaxPayloadSize+1),
			wantError:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := Encode(tt.msgType, tt.messageNumber, tt.payload)

			if (err != nil) != tt.wantError {
				t.Errorf("Encode() error = %v, wantError %v", err, tt.wantError)
				return
			}

			if tt.wantError {
				return
			}

			if len(result) != headerSize+len(tt.payload) {
				t.Errorf("result length = %d, want %d", len(result), headerSize+len(tt.payload))
			}

			if got := MessageType(binary.BigEndian.Uint32(result[0:4])); got != tt.msgType {
				t.Errorf("encoded type = %v, want %v", got, tt.msgType)
			}

			if got := binary.BigEndian.Uint32(result[4:8]); got != tt.messageNumber {
				t.Errorf("encoded message number = %v, want %v", got, tt.messageNumber)
			}

			if !bytes.Equal(result[headerSize:], tt.payload) {
				t.Errorf("encoded payload = %v, want %v", result[headerSize:], tt.payload)
			}
		})
	}
}

// TestDecode tests the Decode function with various inputs
func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		data        []byte
		wantHeader  Header
		wantPayload []byte
		wantError   bool
	}{
		{
			name:        "valid data with payload",
			data:        []byte{0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x02, 0x68, 0x69},
			wantHeader:  Header{Type: TypeRequest, MessageNumber: 2},
			wantPayload: []byte("hi"),
		},
		{
			name:        "exactly header size",
			data:        []byte{0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x01, 0x00},
			wantHeader:  Header{Type: TypeStreamAck, MessageNumber: 0x100},
			wantPayload: []byte{},
		},
		{
			name:      "data too short - empty",
			data:      []byte{},
			wantError: true,
		},
		{
			name:      "data too short - 7 bytes",
			data:      []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			header, payload, err := Decode(tt.data)

			if (err != nil) != tt.wantError {
				t.Errorf("Decode() error = %v, wantError %v", err, tt.wantError)
				return
			}

			if tt.wantError {
				if !errors.Is(err, ErrShortFrame) {
					t.Errorf("Decode() error = %v, want ErrShortFrame", err)
				}
				return
			}

			if header != tt.wantHeader {
				t.Errorf("Decode() header = %+v, want %+v", header, tt.wantHeader)
			}

			if !bytes.Equal(payload, tt.wantPayload) {
				t.Errorf("Decode() payload = %v, want %v", payload, tt.wantPayload)
			}
		})
	}
}

// TestEncodeDecodeRoundTrip verifies that Encode and Decode are inverses
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msgType MessageType
		number  uint32
		payload []byte
	}{
		{"empty payload", TypeStreamAck, 1, []byte{}},
		{"json payload", TypeResponse, 3, []byte(`{"payload":{"friends":[]}}`)},
		{"binary payload", TypeStreamMessage, 4, []byte{0x00, 0x01, 0xFF, 0xFE}},
		{"large payload", TypeRequest, 5, make([]byte, 100*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := Encode(tt.msgType, tt.number, tt.payload)
			if err != nil {
				t.Fatalf("Encode() failed: %v", err)
			}

			header, payload, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}

			if header.Type != tt.msgType || header.MessageNumber != tt.number {
				t.Errorf("header = %+v, want {%v %v}", header, tt.msgType, tt.number)
			}

			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("payload mismatch: got %v, want %v", payload, tt.payload)
			}
		})
	}
}

// Wire values are shared with every other runtime implementation.
func TestMessageTypeWireValues(t *testing.T) {
	t.Parallel()

	want := map[MessageType]uint32{
		TypeCreatePort:            1,
		TypeCreatePortResponse:    2,
		TypeRequestModule:         3,
		TypeRequestModuleResponse: 4,
		TypeRequest:               5,
		TypeResponse:              6,
		TypeStreamMessage:         7,
		TypeStreamAck:             8,
		TypeRemoteError:           9,
	}
	for typ, value := range want {
		if uint32(typ) != value {
			t.Errorf("%s = %d, want %d", typ, uint32(typ), value)
		}
	}
}

func TestDecodeSharesPayload(t *testing.T) {
	t.Parallel()

	frame, err := Encode(TypeStreamMessage, 9, []byte(`{"ack":false}`))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	_, payload, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	payload[0] = '['
	if frame[headerSize] != '[' {
		t.Error("Decode() copied the payload")
	}
}

func TestMessageTypeString(t *testing.T) {
	t.Parallel()

	if got := TypeStreamAck.String(); got != "StreamAck" {
		t.Errorf("String() = %q, want StreamAck", got)
	}
	if got := MessageType(99).String(); got != "MessageType(99)" {
		t.Errorf("String() = %q, want MessageType(99)", got)
	}
}

// BenchmarkEncode benchmarks the encoding operation
func BenchmarkEncode(b *testing.B) {
	payload := []byte(`{"portId":1,"procedureId":3,"payload":{}}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Encode(TypeRequest, uint32(i), payload)
	}
}

// BenchmarkDecode benchmarks the decoding operation
func BenchmarkDecode(b *testing.B) {
	data, _ := Encode(TypeResponse, 1, []byte(`{"payload":{}}`))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = Decode(data)
	}
}
