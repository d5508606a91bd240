package scoring

import (
	"testing"

	"github.com/pagepulse/pagepulse/internal/model"
)

func TestViewerKey_Precedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  model.AccessLog
		want string
	}{
		{
			name: "email wins",
			rec:  model.AccessLog{ID: "r1", SessionID: "s1", IPAddress: "1.2.3.4", ViewerEmail: "Jo@Example.com"},
			want: "jo@example.com",
		},
		{
			name: "ip when no email",
			rec:  model.AccessLog{ID: "r1", SessionID: "s1", IPAddress: "1.2.3.4"},
			want: "1.2.3.4",
		},
		{
			name: "session when no ip",
			rec:  model.AccessLog{ID: "r1", SessionID: "s1"},
			want: "s1",
		},
		{
			name: "record id last resort",
			rec:  model.AccessLog{ID: "r1"},
			want: "r1",
		},
		{
			name: "whitespace email treated as absent",
			rec:  model.AccessLog{ID: "r1", ViewerEmail: "   ", IPAddress: "5.6.7.8"},
			want: "5.6.7.8",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ViewerKey(&tt.rec); got != tt.want {
				t.Errorf("ViewerKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestViewerKey_Pure(t *testing.T) {
	t.Parallel()

	rec := &model.AccessLog{ViewerEmail: "a@b.co", IPAddress: "9.9.9.9"}
	first := ViewerKey(rec)
	for i := 0; i < 10; i++ {
		if ViewerKey(rec) != first {
			t.Fatal("ViewerKey is not stable for the same record")
		}
	}
}
