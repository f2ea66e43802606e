package shared

import (
	"testing"

	"transparencia/internal/domain/registry"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    registry.Period
		wantErr bool
	}{
		{name: "dash form", input: "2023-05", want: registry.Period{Year: 2023, Month: 5}},
		{name: "slash form", input: "2023/05", want: registry.Period{Year: 2023, Month: 5}},
		{name: "empty is open", input: "", want: registry.Period{}},
		{name: "month only", input: "2023", wantErr: true},
		{name: "month thirteen", input: "2023-13", wantErr: true},
		{name: "month zero", input: "2023-00", wantErr: true},
		{name: "non numeric year", input: "abcd-05", wantErr: true},
		{name: "non numeric month", input: "2023-xx", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriod(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePeriod(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriod(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePeriod(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseScope(t *testing.T) {
	params := map[string]string{
		"from":   "2023-01",
		"to":     "2023-06",
		"org":    "FAZENDA",
		"roleId": "r1",
	}
	scope, err := ParseScope(func(key string) string { return params[key] })
	if err != nil {
		t.Fatalf("ParseScope: %v", err)
	}
	if scope.From != (registry.Period{Year: 2023, Month: 1}) {
		t.Errorf("From = %v", scope.From)
	}
	if scope.To != (registry.Period{Year: 2023, Month: 6}) {
		t.Errorf("To = %v", scope.To)
	}
	if scope.Org != "FAZENDA" || scope.RoleID != "r1" {
		t.Errorf("Org = %q, RoleID = %q", scope.Org, scope.RoleID)
	}
}

func TestParseScopeRejectsInvertedRange(t *testing.T) {
	params := map[string]string{"from": "2023-06", "to": "2023-01"}
	if _, err := ParseScope(func(key string) string { return params[key] }); err == nil {
		t.Fatal("want error for to before from")
	}
}
