package model

import "testing"

func TestAccessLogType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   LinkType
		want LinkType
	}{
		{"explicit file", LinkTypeFile, LinkTypeFile},
		{"explicit url", LinkTypeURL, LinkTypeURL},
		{"empty defaults to file", "", LinkTypeFile},
		{"unknown defaults to file", "banner", LinkTypeFile},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &AccessLog{LinkType: tt.in}
			if got := rec.Type(); got != tt.want {
				t.Errorf("Type() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAccessLogHasDownload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  AccessLog
		want bool
	}{
		{"none", AccessLog{}, false},
		{"downloaded flag", AccessLog{Downloaded: true}, true},
		{"legacy flag", AccessLog{IsDownloaded: true}, true},
		{"count only", AccessLog{DownloadCount: 2}, true},
		{"negative count ignored", AccessLog{DownloadCount: -1}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.rec.HasDownload(); got != tt.want {
				t.Errorf("HasDownload() = %v, want %v", got, tt.want)
			}
		})
	}
}
