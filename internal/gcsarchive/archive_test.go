package gcsarchive

import (
	"context"
	"testing"
)

func TestObjectName(t *testing.T) {
	a := NewArchiver("spendlens-uploads")
	got := a.ObjectName("abc-123", "export.csv")
	want := "sessions/abc-123/export.csv"
	if got != want {
		t.Errorf("ObjectName = %q, want %q", got, want)
	}
}

func TestFetchCSV_RejectsInvalidURI(t *testing.T) {
	// Fails on URI validation before any client is created, so the test
	// needs no credentials.
	if _, err := FetchCSV(context.Background(), "https://bucket/file.csv"); err == nil {
		t.Fatal("expected error for non-gs URI")
	}
}

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/sessions/s1/export.csv", "bucket", "sessions/s1/export.csv", false},
		{"gs://bucket/file.csv", "bucket", "file.csv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"http://bucket/file.csv", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		bucket, object, err := splitURI(tt.uri)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitURI(%q): expected error", tt.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitURI(%q): %v", tt.uri, err)
			continue
		}
		if bucket != tt.wantBucket || object != tt.wantObject {
			t.Errorf("splitURI(%q) = (%q, %q), want (%q, %q)",
				tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
		}
	}
}
