package saki

import "testing"

func TestRegistryReplace(t *testing.T) {
	var r Registry
	var hit string
	r.Register("XX", HandlerFunc(func(*Manager, []string) { hit = "first" }))
	r.Register("XX", HandlerFunc(func(*Manager, []string) { hit = "second" }))
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	h, ok := r.Lookup("XX")
	if !ok {
		t.Fatalf("lookup failed")
	}
	h.Handle(nil, nil)
	if hit != "second" {
		t.Fatalf("handler = %q", hit)
	}
}

func TestRegistryLookup(t *testing.T) {
	var r Registry
	r.Register("ID?", HandlerFunc(func(*Manager, []string) {}))
	if _, ok := r.Lookup("id?"); ok {
		t.Fatalf("lookup is case sensitive")
	}
	if _, ok := r.Lookup("ID"); ok {
		t.Fatalf("prefix matched")
	}
	var def bool
	r.RegisterDefault(HandlerFunc(func(*Manager, []string) { def = true }))
	h, ok := r.Lookup("ZZ")
	if !ok {
		t.Fatalf("default not returned")
	}
	h.Handle(nil, nil)
	if !def {
		t.Fatalf("default not invoked")
	}
	r.RegisterDefault(nil)
	if _, ok := r.Lookup("ZZ"); ok {
		t.Fatalf("default not cleared")
	}
	if keys := r.Keys(); len(keys) != 1 || keys[0] != "ID?" {
		t.Fatalf("Keys = %v", keys)
	}
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"ID?", []string{"ID?"}},
		{"CF:lo:30:hi:42", []string{"CF", "lo", "30", "hi", "42"}},
		{"::TM::5:", []string{"TM", "5"}},
		{"", nil},
		{":::", nil},
	}
	for _, c := range cases {
		got, err := Tokenize(c.in)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", c.in, err)
		}
		if len(got) != len(c.want) {
			t.Fatalf("Tokenize(%q) = %q, want %q", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("Tokenize(%q) = %q, want %q", c.in, got, c.want)
			}
		}
	}
}

func TestTokenizeLimit(t *testing.T) {
	p := "CF"
	for i := 1; i < MaxTokens; i++ {
		p += ":x"
	}
	if toks, err := Tokenize(p); err != nil || len(toks) != MaxTokens {
		t.Fatalf("at limit: %d tokens, %v", len(toks), err)
	}
	if _, err := Tokenize(p + ":y"); err != ErrTooManyTokens {
		t.Fatalf("over limit err = %v", err)
	}
}
