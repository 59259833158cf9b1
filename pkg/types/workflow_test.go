package types

import (
	"testing"

	"sigs.k8s.io/yaml"
)

func TestResourcesParse(t *testing.T) {
	tests := []struct {
		name    string
		in      Resources
		want    Requirements
		wantErr bool
	}{
		{
			name: "memory and shm",
			in:   Resources{CPU: 4, Memory: "16GB", ShmSize: "512MB"},
			want: Requirements{CPUs: 4, Memory: 16 * 1024 * 1024 * 1024, ShmSize: 512 * 1024 * 1024},
		},
		{
			name: "gpu defaults to one",
			in:   Resources{GPU: &GPU{Name: "V100"}},
			want: Requirements{GPUCount: 1, GPUName: "V100"},
		},
		{
			name: "interruptible",
			in:   Resources{CPU: 2, Interruptible: true},
			want: Requirements{CPUs: 2, Interruptible: true},
		},
		{
			name:    "bad memory",
			in:      Resources{Memory: "sixteen"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if *got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestGPUShortForm(t *testing.T) {
	raw := []byte(`
resources:
  gpu: 2
`)
	var wf Workflow
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		t.Fatal(err)
	}
	if wf.Resources.GPU == nil || wf.Resources.GPU.Count != 2 {
		t.Fatalf("gpu short form not parsed: %+v", wf.Resources.GPU)
	}

	raw = []byte(`
resources:
  gpu:
    name: V100
    memory: 16GB
`)
	wf = Workflow{}
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		t.Fatal(err)
	}
	if wf.Resources.GPU.Name != "V100" || wf.Resources.GPU.Memory != "16GB" {
		t.Fatalf("gpu object form not parsed: %+v", wf.Resources.GPU)
	}
}
