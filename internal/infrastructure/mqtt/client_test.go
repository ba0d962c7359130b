package mqtt

import (
	"errors"
	"strings"
	"testing"
)

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestPublishDisconnected(t *testing.T) {
	client := &Client{}

	err := client.Publish("entreceiver/entity/sensor.a/state", []byte("x"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{
			name:    "empty topic",
			topic:   "",
			payload: []byte("x"),
			qos:     1,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "invalid QoS",
			topic:   "entreceiver/entity/sensor.a/state",
			payload: []byte("x"),
			qos:     3,
			wantErr: ErrInvalidQoS,
		},
		{
			name:    "oversized payload",
			topic:   "entreceiver/entity/sensor.a/state",
			payload: make([]byte, maxPayloadSize+1),
			qos:     1,
			wantErr: ErrPublishFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "entity state",
			got:  topics.EntityState("sensor.garden_temp"),
			want: "entreceiver/entity/sensor.garden_temp/state",
		},
		{
			name: "entity event created",
			got:  topics.EntityEvent("created"),
			want: "entreceiver/event/created",
		},
		{
			name: "entity event removed",
			got:  topics.EntityEvent("removed"),
			want: "entreceiver/event/removed",
		},
		{
			name: "listener status",
			got:  topics.ListenerStatus(),
			want: "entreceiver/system/listener",
		},
		{
			name: "system status",
			got:  topics.SystemStatus(),
			want: "entreceiver/system/status",
		},
		{
			name: "all entity states wildcard",
			got:  topics.AllEntityStates(),
			want: "entreceiver/entity/+/state",
		},
		{
			name: "all events wildcard",
			got:  topics.AllEvents(),
			want: "entreceiver/event/+",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("entreceiver-test")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	if !strings.Contains(online, `"client_id":"entreceiver-test"`) {
		t.Errorf("online payload missing client_id: %s", online)
	}

	offline := buildOfflinePayload("entreceiver-test")
	if !strings.Contains(offline, `"status":"offline"`) {
		t.Errorf("offline payload missing status: %s", offline)
	}
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}
