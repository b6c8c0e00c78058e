package theme

import "testing"

func TestStatus(t *testing.T) {
	tests := map[string]string{
		"succeeded": string(Success),
		"failed":    string(Failure),
		"skipped":   string(Muted),
		"":          string(Muted),
	}
	for status, want := range tests {
		if got := string(Status(status)); got != want {
			t.Errorf("Status(%q) = %s, want %s", status, got, want)
		}
	}
}
