package winhost

import (
	"encoding/json"

	"github.com/go-errors/errors"

	"github.com/FScoward/funhou-sub000/internal/bridge"
)

func marshalMessage(msg bridge.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Errorf("winhost: marshal %s message: %v", msg.Type, err)
	}
	return data, nil
}

func unmarshalMessage(data []byte) (bridge.Message, error) {
	var msg bridge.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return bridge.Message{}, errors.Errorf("winhost: decode message: %v", err)
	}
	if msg.Type == "" {
		return bridge.Message{}, errors.Errorf("winhost: message missing type")
	}
	return msg, nil
}
