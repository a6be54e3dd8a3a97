package builtins

import "testing"

func TestWSRegistryAddGetRemove(t *testing.T) {
	reg := &wsRegistry{conns: map[string]*wsConn{}}
	c := &wsConn{}
	handle := reg.add(c)
	if handle == "" {
		t.Fatal("add returned an empty handle")
	}
	got, ok := reg.get(handle)
	if !ok || got != c {
		t.Fatalf("get(%q) = %v, %v, want the connection just added", handle, got, ok)
	}
	reg.remove(handle)
	if _, ok := reg.get(handle); ok {
		t.Fatalf("get(%q) after remove should report not found", handle)
	}
}

func TestWSRegistryHandlesAreUnique(t *testing.T) {
	reg := &wsRegistry{conns: map[string]*wsConn{}}
	h1 := reg.add(&wsConn{})
	h2 := reg.add(&wsConn{})
	if h1 == h2 {
		t.Fatalf("two distinct add calls produced the same handle %q", h1)
	}
}
