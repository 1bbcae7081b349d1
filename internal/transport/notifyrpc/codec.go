package notifyrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"courier-dispatch/internal/domain"
)

// Request and response field names.
const (
	FieldUserID    = "user_id"
	FieldEvent     = "event"
	FieldFields    = "fields"
	FieldDelivered = "delivered"
)

// EncodeRequest builds the Notify request for userID.
func EncodeRequest(userID string, n domain.Notification) (*structpb.Struct, error) {
	fields, err := plain(n.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode notification fields: %w", err)
	}
	req, err := structpb.NewStruct(map[string]any{
		FieldUserID: userID,
		FieldEvent:  n.Event,
		FieldFields: fields,
	})
	if err != nil {
		return nil, fmt.Errorf("encode notify request: %w", err)
	}
	return req, nil
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(req *structpb.Struct) (string, domain.Notification, error) {
	if req == nil {
		return "", domain.Notification{}, errors.New("empty request")
	}
	userID := strings.TrimSpace(req.GetFields()[FieldUserID].GetStringValue())
	if userID == "" {
		return "", domain.Notification{}, errors.New("user_id is required")
	}
	event := strings.TrimSpace(req.GetFields()[FieldEvent].GetStringValue())
	if event == "" {
		return "", domain.Notification{}, errors.New("event is required")
	}

	var fields map[string]any
	if s := req.GetFields()[FieldFields].GetStructValue(); s != nil {
		fields = s.AsMap()
	}
	return userID, domain.Notification{Event: event, Fields: fields}, nil
}

// EncodeResponse builds the Notify response.
func EncodeResponse(delivered int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldDelivered: structpb.NewNumberValue(float64(delivered)),
	}}
}

// DecodeResponse returns the number of channels reached.
func DecodeResponse(resp *structpb.Struct) int {
	return int(resp.GetFields()[FieldDelivered].GetNumberValue())
}

// plain turns arbitrary JSON-encodable fields into the map/slice/float64
// shapes structpb accepts.
func plain(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
