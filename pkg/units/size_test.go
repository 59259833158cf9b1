package units

import "testing"

func TestRAMInBytes(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "512MB", want: 512 * MiB},
		{raw: "16GB", want: 16 * GiB},
		{raw: "16GiB", want: 16 * GiB},
		{raw: "8g", want: 8 * GiB},
		{raw: "1024", want: 1024},
		{raw: "64b", want: 64},
		{raw: "0.5g", want: 512 * MiB},
		{raw: "", wantErr: true},
		{raw: "16QB", wantErr: true},
		{raw: "GB", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := RAMInBytes(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RAMInBytes(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("RAMInBytes(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBytesSize(t *testing.T) {
	if got := BytesSize(16 * GiB); got != "16GiB" {
		t.Errorf("BytesSize = %s, want 16GiB", got)
	}
	if got := HumanSize(1000 * 1000); got != "1MB" {
		t.Errorf("HumanSize = %s, want 1MB", got)
	}
}
