package messaging

import "encoding/json"

// envelopeMarker distinguishes enveloped NSQ bodies from raw payloads
// published by other producers.
const envelopeMarker = "otpgate/v1"

type envelope struct {
	Marker  string            `json:"m"`
	Headers map[string]string `json:"h,omitempty"`
	Body    []byte            `json:"b"`
}

func sealEnvelope(msg OutgoingMessage) ([]byte, error) {
	if len(msg.Headers) == 0 {
		return msg.Body, nil
	}
	return json.Marshal(envelope{Marker: envelopeMarker, Headers: msg.Headers, Body: msg.Body})
}

// openEnvelope returns the headers and payload of raw, treating anything
// that is not an envelope as a bare payload.
func openEnvelope(raw []byte) (map[string]string, []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Marker != envelopeMarker {
		return nil, raw
	}
	return env.Headers, env.Body
}
