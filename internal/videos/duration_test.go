package videos

import "testing"

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		token string
		want  int
		ok    bool
	}{
		{token: "PT3M33S", want: 213, ok: true},
		{token: "PT1H2M3S", want: 3723, ok: true},
		{token: "PT1H", want: 3600, ok: true},
		{token: "PT45S", want: 45, ok: true},
		{token: "PT10M", want: 600, ok: true},
		{token: "P1DT1S", want: 86401, ok: true},
		{token: "P0D", want: 0, ok: true},
		{token: ""},
		{token: "P"},
		{token: "PT"},
		{token: "3:33"},
		{token: "PT3X"},
		{token: "pt3m"},
	}

	for _, tt := range tests {
		got, ok := ParseISODuration(tt.token)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseISODuration(%q) = (%d, %v), want (%d, %v)", tt.token, got, ok, tt.want, tt.ok)
		}
	}
}
