package client

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"
)

// decodedEntry returns a map with the entry id and one of payload_json,
// payload_text, or payload_b64 depending on what the payload looks like.
func decodedEntry(id string, payload []byte) map[string]any {
	out := map[string]any{"id": id}
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}
