package util

import "testing"

func TestFold(t *testing.T) {
	tests := []struct{ a, b string }{
		{"Perícia", "pericia"},
		{"PREVIDENCIÁRIO", "previdenciario"},
		{"Auxílio Doença", "auxilio doenca"},
		{"São João", "SAO JOAO"},
	}
	for _, tt := range tests {
		if Fold(tt.a) != Fold(tt.b) {
			t.Errorf("Fold(%q) = %q, Fold(%q) = %q; want equal", tt.a, Fold(tt.a), tt.b, Fold(tt.b))
		}
	}
	if Fold("Trabalhista") == Fold("Consumidor") {
		t.Error("distinct words folded together")
	}
}
