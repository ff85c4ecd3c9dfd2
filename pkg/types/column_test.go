package types

import "testing"

func TestParseColumnKind(t *testing.T) {
	tests := []struct {
		input   string
		want    ColumnKind
		wantErr bool
	}{
		{"numeric", KindNumeric, false},
		{"Categorical", KindCategorical, false},
		{"  DATETIME  ", KindDatetime, false},
		{"text", KindText, false},
		{"boolean", KindBoolean, false},
		{"float", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseColumnKind(tt.input)
		if tt.wantErr {
			if err != ErrUnknownColumnKind {
				t.Errorf("ParseColumnKind(%q): expected ErrUnknownColumnKind, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseColumnKind(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColumnKind(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestColumnKind_Discrete(t *testing.T) {
	discrete := []ColumnKind{KindCategorical, KindText, KindBoolean}
	for _, k := range discrete {
		if !k.Discrete() {
			t.Errorf("expected %q to be discrete", k)
		}
	}
	for _, k := range []ColumnKind{KindNumeric, KindDatetime} {
		if k.Discrete() {
			t.Errorf("expected %q not to be discrete", k)
		}
	}
}
