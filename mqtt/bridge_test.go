package mqtt

import (
	"testing"

	"agrodetect/devices"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusPattern = "agrodetect/esp/+/status"

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return qos }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestParseHeartbeat(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		wantID  string
		wantErr bool
	}{
		{"id in payload", "agrodetect/esp/cam-7/status", `{"device_id":"esp-1","ip":"10.0.0.5"}`, "esp-1", false},
		{"id from topic", "agrodetect/esp/cam-7/status", `{"ip":"10.0.0.5","free_heap":1024}`, "cam-7", false},
		{"topic mismatch", "agrodetect/esp/status", `{"ip":"10.0.0.5"}`, "", true},
		{"bad json", "agrodetect/esp/cam-7/status", `online`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hb, err := ParseHeartbeat(statusPattern, tt.topic, []byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, hb.DeviceID)
			assert.Equal(t, "10.0.0.5", hb.IP)
		})
	}
}

func TestControlTopic(t *testing.T) {
	assert.Equal(t, "agrodetect/esp/esp-1/control", ControlTopic("agrodetect/esp/{device_id}/control", "esp-1"))
}

func TestHandleStatusUpdatesRegistry(t *testing.T) {
	registry := devices.NewRegistry()
	b := &Bridge{registry: registry, statusTopic: statusPattern}

	b.handleStatus(nil, fakeMessage{topic: "agrodetect/esp/cam-2/status", payload: []byte(`{"ip":"192.168.1.20","free_heap":2048}`)})
	b.handleStatus(nil, fakeMessage{topic: "agrodetect/esp/cam-3/status", payload: []byte(`garbage`)})

	list := registry.List()
	require.Len(t, list, 1)
	assert.Equal(t, "cam-2", list[0].DeviceID)
	assert.Equal(t, "192.168.1.20", list[0].IP)
	require.NotNil(t, list[0].FreeHeap)
	assert.Equal(t, int64(2048), *list[0].FreeHeap)
	assert.True(t, list[0].Enabled)
}
