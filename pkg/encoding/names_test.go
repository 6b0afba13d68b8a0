package encoding

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hips", "Hips"},
		{"trailing nul", "Spine\x00\x00", "Spine"},
		{"whitespace", "  Head ", "Head"},
		{"decomposed to composed", "Cafe\u0301", "Caf\u00e9"},
		// "가" in EUC-KR is 0xB0 0xA1
		{"euc-kr", string([]byte{0xB0, 0xA1}), "가"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeNames(t *testing.T) {
	got := NormalizeNames([]string{"a\x00", " b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("NormalizeNames = %q", got)
	}
}
