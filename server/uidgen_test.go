package main

import "testing"

func TestUidGenerator(t *testing.T) {
	var ug uidGenerator
	if err := ug.Init(1, []byte("0123456789abcdef")); err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		sid := ug.GetStr()
		if len(sid) != sidBase64Unpadded {
			t.Fatalf("sid length: got %d, want %d", len(sid), sidBase64Unpadded)
		}
		if seen[sid] {
			t.Fatalf("duplicate sid after %d draws: %s", i, sid)
		}
		seen[sid] = true
	}
}

func TestUidGeneratorBadKey(t *testing.T) {
	var ug uidGenerator
	if err := ug.Init(1, []byte("short")); err == nil {
		t.Error("expected an error for a key that is not 16 bytes")
	}
}
