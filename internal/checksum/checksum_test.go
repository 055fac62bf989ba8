package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != want {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestETagStableForMaps(t *testing.T) {
	a, err := ETag(map[string]int{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := ETag(map[string]int{"b": 2, "a": 1})
	if a != b {
		t.Errorf("etag depends on map order: %s vs %s", a, b)
	}
	if a[0] != '"' || a[len(a)-1] != '"' {
		t.Errorf("etag not quoted: %s", a)
	}
	c, _ := ETag(map[string]int{"a": 1})
	if c == a {
		t.Error("different content produced the same etag")
	}
}

func TestETagUnencodable(t *testing.T) {
	if _, err := ETag(make(chan int)); err == nil {
		t.Error("expected encode error")
	}
}
