// Package wire defines the JSON envelope and per-type payloads exchanged
// over the transport: { "type": <number>, "payload": {...} }.
package wire

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies an envelope's payload shape. Most types are small
// integers; a handful (0.1, 0.2, 7.1) are fractional, hence float64-backed
// rather than an int enum.
type MessageType float64

const (
	TypeRegister           MessageType = 0
	TypeRegistered         MessageType = 0.1
	TypeRegistrationFailed MessageType = 0.2
	TypeUserNotFound       MessageType = -1
	TypeServerDisconnect   MessageType = -2

	TypeSessionRequest    MessageType = 1
	TypeSessionAccept     MessageType = 2
	TypeSessionDeny       MessageType = 3
	TypeInitiatorKey      MessageType = 4
	TypeChallenge         MessageType = 5
	TypeChallengeResponse MessageType = 6
	TypeEstablished       MessageType = 7
	TypeSasConfirm        MessageType = 7.1

	TypeChat         MessageType = 8
	TypeEndSession   MessageType = 9
	TypeTypingStart  MessageType = 10
	TypeTypingStop   MessageType = 11

	TypeFileOffer    MessageType = 12
	TypeFileAccept   MessageType = 13
	TypeFileReject   MessageType = 14
	TypeFileChunk    MessageType = 15
	TypeFileComplete MessageType = 16
	TypeFileError    MessageType = 17
)

func (t MessageType) String() string {
	switch t {
	case TypeRegister:
		return "Register"
	case TypeRegistered:
		return "Registered"
	case TypeRegistrationFailed:
		return "RegistrationFailed"
	case TypeUserNotFound:
		return "UserNotFound"
	case TypeServerDisconnect:
		return "ServerDisconnect"
	case TypeSessionRequest:
		return "SessionRequest"
	case TypeSessionAccept:
		return "SessionAccept"
	case TypeSessionDeny:
		return "SessionDeny"
	case TypeInitiatorKey:
		return "InitiatorKey"
	case TypeChallenge:
		return "Challenge"
	case TypeChallengeResponse:
		return "ChallengeResponse"
	case TypeEstablished:
		return "Established"
	case TypeSasConfirm:
		return "SasConfirm"
	case TypeChat:
		return "Chat"
	case TypeEndSession:
		return "EndSession"
	case TypeTypingStart:
		return "TypingStart"
	case TypeTypingStop:
		return "TypingStop"
	case TypeFileOffer:
		return "FileOffer"
	case TypeFileAccept:
		return "FileAccept"
	case TypeFileReject:
		return "FileReject"
	case TypeFileChunk:
		return "FileChunk"
	case TypeFileComplete:
		return "FileComplete"
	case TypeFileError:
		return "FileError"
	default:
		return fmt.Sprintf("MessageType(%v)", float64(t))
	}
}

// Envelope is the outer JSON object carried by the transport. Payload is
// decoded lazily into a concrete type once the coordinator knows Type.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals a typed payload into a wire envelope.
func Encode(t MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal payload for %s: %w", t, err)
	}
	env := Envelope{Type: t, Payload: raw}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal envelope for %s: %w", t, err)
	}
	return out, nil
}

// Decode parses the outer envelope only; callers decode Payload themselves
// once they know Type. Malformed envelopes are reported, never panic —
// the coordinator ignores messages that fail to parse (spec: "payload
// validation rejects missing fields by ignoring the message").
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into dst.
func DecodePayload(env Envelope, dst any) error {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("wire: decode payload for %s: %w", env.Type, err)
	}
	return nil
}
