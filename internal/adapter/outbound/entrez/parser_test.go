package entrez

import (
	"strings"
	"testing"
)

func TestParser_ParseIdentifiers(t *testing.T) {
	t.Parallel()

	p := NewParser()
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr string
	}{
		{
			name: "order and duplicates kept",
			body: `{"header":{"type":"esearch"},"esearchresult":{"count":"3","retmax":"3","idlist":["300","100","300"]}}`,
			want: []string{"300", "100", "300"},
		},
		{
			name: "empty idlist",
			body: `{"esearchresult":{"count":"0","idlist":[]}}`,
			want: []string{},
		},
		{
			name: "missing idlist",
			body: `{"esearchresult":{"count":"0"}}`,
			want: []string{},
		},
		{
			name:    "missing envelope",
			body:    `{"header":{}}`,
			wantErr: "missing esearchresult",
		},
		{
			name:    "remote error",
			body:    `{"esearchresult":{"ERROR":"Invalid query"}}`,
			wantErr: "Invalid query",
		},
		{
			name:    "top level error",
			body:    `{"error":"API rate limit exceeded"}`,
			wantErr: "rate limit",
		},
		{
			name:    "not json",
			body:    `<html>oops</html>`,
			wantErr: "invalid search response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.ParseIdentifiers([]byte(tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ParseIdentifiers() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIdentifiers() error: %v", err)
			}
			if got == nil {
				t.Fatal("ParseIdentifiers() = nil, want non-nil slice")
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ParseIdentifiers() = %v, want %v", got, tt.want)
			}
		})
	}
}
