package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/tank-controller/internal/logic"
)

var ts = time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)

func TestFormatPayloadInletOn(t *testing.T) {
	event := logic.Event{
		Timestamp: ts,
		Type:      logic.EventInletOn,
		Level:     20,
		Pump:      -1,
		Duration:  2 * time.Second,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"tank":{"timestamp":"2026-02-10T08:30:00Z","event":"INLET_ON","level":20,"duration_ms":2000}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadDose(t *testing.T) {
	event := logic.Event{
		Timestamp: ts,
		Type:      logic.EventDose,
		Level:     55,
		Pump:      0,
		Duration:  25 * time.Second,
		AmountMl:  50,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatal(err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Tank.Pump == nil || *parsed.Tank.Pump != 0 {
		t.Errorf("pump 0 must be present, got %v", parsed.Tank.Pump)
	}
	if parsed.Tank.AmountMl != 50 || parsed.Tank.DurationMs != 25000 {
		t.Errorf("unexpected payload %+v", parsed.Tank)
	}
}

func TestFormatPayloadSensorError(t *testing.T) {
	event := logic.Event{
		Timestamp: ts,
		Type:      logic.EventSensorError,
		Error:     logic.ErrSensorTimeout,
		Pump:      -1,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatal(err)
	}
	tank := parsed["tank"]
	if tank["error"] != logic.ErrSensorTimeout.String() {
		t.Errorf("error: got %v", tank["error"])
	}
	if _, ok := tank["pump"]; ok {
		t.Error("pump should be omitted for non-pump events")
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	event := logic.Event{Timestamp: time.Date(2026, 2, 10, 9, 30, 0, 0, loc), Type: logic.EventSensorOK, Pump: -1}

	payload, _ := FormatPayload(event)
	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Tank.Timestamp != "2026-02-10T08:30:00Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Tank.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "aquarium/tank/controller/events" {
		t.Errorf("unexpected topic %s", Topic)
	}
	if TopicSystem != "aquarium/tank/controller/system" {
		t.Errorf("unexpected system topic %s", TopicSystem)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	event := SystemEvent{
		Timestamp: ts,
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadReconnectedOmitsReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "RECONNECTED"})

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	f.Publish(logic.Event{Timestamp: ts, Type: logic.EventOutletOn, Level: 80, Pump: -1})
	f.Publish(logic.Event{Timestamp: ts, Type: logic.EventOutletOff, Level: 65, Pump: -1})
	f.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true})

	types := f.EventTypes()
	if len(types) != 2 || types[0] != logic.EventOutletOn || types[1] != logic.EventOutletOff {
		t.Errorf("event order: %v", types)
	}
	if len(f.Payloads) != 2 || len(f.SystemPayloads) != 1 {
		t.Errorf("payloads: %d events, %d system", len(f.Payloads), len(f.SystemPayloads))
	}
	if !f.SystemEvents[0].Retained {
		t.Error("retained flag not recorded")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(logic.Event{Pump: -1}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.Publish(logic.Event{Pump: -1})
	f.Close()

	f.Reset()
	if len(f.Events) != 0 || f.Closed || f.Connected {
		t.Errorf("reset incomplete: %+v", f)
	}
}
