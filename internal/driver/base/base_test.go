package base

import (
	"reflect"
	"testing"
)

func TestSplitBatches(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "separator lines",
			script: "CREATE TABLE a (id int)\nGO\nCREATE TABLE b (id int)\nGO\n",
			want:   []string{"CREATE TABLE a (id int)", "CREATE TABLE b (id int)"},
		},
		{
			name:   "separator inside identifiers is kept",
			script: "CREATE TABLE CATEGORY (GOAL int)\nGO",
			want:   []string{"CREATE TABLE CATEGORY (GOAL int)"},
		},
		{
			name:   "lowercase go is not a separator",
			script: "SELECT 1\ngo\nSELECT 2",
			want:   []string{"SELECT 1\ngo\nSELECT 2"},
		},
		{
			name:   "indented separator and windows newlines",
			script: "SELECT 1\r\n  GO  \r\nSELECT 2\r\n",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "empty batches dropped",
			script: "GO\n\nGO\n   \nGO",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitBatches(tt.script)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitBatches() = %q, want %q", got, tt.want)
			}
		})
	}
}
