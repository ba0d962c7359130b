package entity

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Update
	}{
		{
			name: "full payload",
			raw:  `{"entity_id":"sensor.garden_temp","state":"21.4","attributes":{"unit_of_measurement":"°C"},"broadcaster_name":"Remote Home Assistant"}`,
			want: Update{
				EntityID:        "sensor.garden_temp",
				State:           "21.4",
				Attributes:      Attributes{"unit_of_measurement": "°C"},
				BroadcasterName: "Remote Home Assistant",
			},
		},
		{
			name: "minimal payload applies defaults",
			raw:  `{"entity_id":"light.hall","state":"on"}`,
			want: Update{
				EntityID:   "light.hall",
				State:      "on",
				Attributes: Attributes{},
			},
		},
		{
			name: "numeric state coerced to string",
			raw:  `{"entity_id":"sensor.lux","state":417}`,
			want: Update{
				EntityID:   "sensor.lux",
				State:      "417",
				Attributes: Attributes{},
			},
		},
		{
			name: "float state keeps precision",
			raw:  `{"entity_id":"sensor.temp","state":21.45}`,
			want: Update{
				EntityID:   "sensor.temp",
				State:      "21.45",
				Attributes: Attributes{},
			},
		},
		{
			name: "boolean state coerced to string",
			raw:  `{"entity_id":"binary_sensor.door","state":true}`,
			want: Update{
				EntityID:   "binary_sensor.door",
				State:      "true",
				Attributes: Attributes{},
			},
		},
		{
			name: "entity_id trimmed",
			raw:  `{"entity_id":"  sensor.padded  ","state":"ok"}`,
			want: Update{
				EntityID:   "sensor.padded",
				State:      "ok",
				Attributes: Attributes{},
			},
		},
		{
			name: "nested attributes preserved",
			raw:  `{"entity_id":"light.hall","state":"on","attributes":{"rgb":[255,128,0],"meta":{"zone":"hall"}}}`,
			want: Update{
				EntityID: "light.hall",
				State:    "on",
				Attributes: Attributes{
					"rgb":  []any{float64(255), float64(128), float64(0)},
					"meta": map[string]any{"zone": "hall"},
				},
			},
		},
		{
			name: "non-object attributes ignored",
			raw:  `{"entity_id":"light.hall","state":"on","attributes":"bogus"}`,
			want: Update{
				EntityID:   "light.hall",
				State:      "on",
				Attributes: Attributes{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{
			name:    "not JSON",
			raw:     `{{{`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "empty payload",
			raw:     ``,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "truncated payload",
			raw:     `{"entity_id":"sensor.a","sta`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "JSON array",
			raw:     `[1,2,3]`,
			wantErr: ErrNotObject,
		},
		{
			name:    "JSON string",
			raw:     `"hello"`,
			wantErr: ErrNotObject,
		},
		{
			name:    "JSON null",
			raw:     `null`,
			wantErr: ErrNotObject,
		},
		{
			name:    "missing entity_id",
			raw:     `{"state":"on"}`,
			wantErr: ErrMissingEntityID,
		},
		{
			name:    "entity_id not a string",
			raw:     `{"entity_id":42,"state":"on"}`,
			wantErr: ErrMissingEntityID,
		},
		{
			name:    "entity_id whitespace only",
			raw:     `{"entity_id":"   ","state":"on"}`,
			wantErr: ErrMissingEntityID,
		},
		{
			name:    "missing state",
			raw:     `{"entity_id":"sensor.a"}`,
			wantErr: ErrMissingState,
		},
		{
			name:    "null state",
			raw:     `{"entity_id":"sensor.a","state":null}`,
			wantErr: ErrInvalidState,
		},
		{
			name:    "object state",
			raw:     `{"entity_id":"sensor.a","state":{"v":1}}`,
			wantErr: ErrInvalidState,
		},
		{
			name:    "array state",
			raw:     `{"entity_id":"sensor.a","state":[1]}`,
			wantErr: ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if err == nil {
				t.Fatal("Decode() expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Decode() error = %v, should wrap ErrDecode", err)
			}
		})
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{0x00, 0xff, 0xfe},
		[]byte(`{"entity_id":`),
		[]byte(`{"entity_id":{"nested":{"deep":[[[[[]]]]]}}}`),
	}

	for _, raw := range inputs {
		// A panic fails the test; errors are expected
		_, _ = Decode(raw)
	}
}
