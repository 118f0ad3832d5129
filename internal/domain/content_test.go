package domain

import "testing"

func TestDecodeContentByType(t *testing.T) {
	c, err := DecodeContent("report", []byte(`{"summary":"Q3 numbers","sections":["intro","results"]}`))
	if err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if c.Report == nil || c.Report.Summary != "Q3 numbers" || len(c.Report.Sections) != 2 {
		t.Fatalf("unexpected report: %+v", c.Report)
	}

	c, err = DecodeContent("code", []byte(`{"repo_url":"https://example.com/r.git","files":["main.go"]}`))
	if err != nil {
		t.Fatalf("decode code: %v", err)
	}
	if c.Code == nil || c.Code.RepoURL == "" {
		t.Fatalf("unexpected code: %+v", c.Code)
	}
}

func TestDecodeContentUnknownTypeFallsBackToRaw(t *testing.T) {
	payload := []byte(`{"anything":["goes",1]}`)
	c, err := DecodeContent("slideshow", payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Raw == nil || string(c.Raw) != string(payload) {
		t.Fatalf("expected raw passthrough, got %s", c.Raw)
	}
	out, err := c.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(out) != string(payload) {
		t.Fatalf("raw content must round-trip unchanged")
	}
}

func TestDecodeContentRejectsMalformed(t *testing.T) {
	if _, err := DecodeContent("report", []byte(`{"summary":`)); err == nil {
		t.Fatalf("expected error for malformed report content")
	}
	if _, err := DecodeContent("slideshow", []byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed raw content")
	}
}
