package mqtt

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/nfcreg/pkg/l0/device"
	"github.com/robotalks/nfcreg/pkg/l1/host"
)

// Field names of an encoded event.
const (
	FieldKind         = "kind"
	FieldSession      = "session"
	FieldTime         = "time"
	FieldUID          = "uid"
	FieldRegister     = "register"
	FieldRegisterCode = "register_code"
	FieldText         = "text"
)

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

// EncodeEvent encodes an Event as a protobuf Struct.
func EncodeEvent(e host.Event) ([]byte, error) {
	ts, err := ptypes.TimestampProto(e.Time)
	if err != nil {
		return nil, fmt.Errorf("encode event time: %w", err)
	}
	fields := map[string]*structpb.Value{
		FieldKind: stringValue(string(e.Kind)),
		FieldTime: stringValue(ptypes.TimestampString(ts)),
	}
	if e.Session != "" {
		fields[FieldSession] = stringValue(e.Session)
	}
	switch e.Kind {
	case host.EventVerified, host.EventDenied:
		fields[FieldUID] = stringValue(host.FormatUID(e.UID))
	case host.EventRegister:
		fields[FieldRegister] = stringValue(e.Register.String())
		fields[FieldRegisterCode] = numberValue(float64(e.Register))
	}
	if e.Text != "" {
		fields[FieldText] = stringValue(e.Text)
	}
	return proto.Marshal(&structpb.Struct{Fields: fields})
}

// DecodeEvent decodes what EncodeEvent produced.
func DecodeEvent(data []byte) (e host.Event, err error) {
	var s structpb.Struct
	if err = proto.Unmarshal(data, &s); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	str := func(key string) string {
		return s.Fields[key].GetStringValue()
	}
	e.Kind = host.EventKind(str(FieldKind))
	if e.Kind == "" {
		return e, fmt.Errorf("decode event: missing %s", FieldKind)
	}
	e.Session = str(FieldSession)
	e.Text = str(FieldText)
	if val := str(FieldTime); val != "" {
		if e.Time, err = time.Parse(time.RFC3339Nano, val); err != nil {
			return e, fmt.Errorf("decode event time: %w", err)
		}
	}
	if val := str(FieldUID); val != "" {
		if e.UID, err = hex.DecodeString(val); err != nil {
			return e, fmt.Errorf("decode event uid: %w", err)
		}
	}
	if v, ok := s.Fields[FieldRegisterCode]; ok {
		e.Register = device.RegisterState(v.GetNumberValue())
	}
	return e, nil
}
