package ws

import "encoding/json"

// frameMessageID pulls the client message id out of an inbound frame
// without decoding the whole payload.
func frameMessageID(frame []byte) string {
	var envelope struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return ""
	}
	return envelope.MessageID
}
