package strconvx

import "testing"

func TestAtol(t *testing.T) {
	cases := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"42", 42},
		{"  -17", -17},
		{"+8", 8},
		{"30abc", 30},
		{"abc", 0},
		{"-", 0},
		{"99999999999", 2147483647},
		{"-99999999999", -2147483648},
		{"1700000000", 1700000000},
	}
	for _, c := range cases {
		if got := Atol(c.in); got != c.want {
			t.Errorf("Atol(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestAtolOK(t *testing.T) {
	if _, ok := AtolOK("lo"); ok {
		t.Fatalf("AtolOK(lo) ok")
	}
	if v, ok := AtolOK(" -3"); !ok || v != -3 {
		t.Fatalf("AtolOK(-3) = %d,%v", v, ok)
	}
}
