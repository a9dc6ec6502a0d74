package common

import "testing"

func TestPlainText_PassthroughWithoutMarkup(t *testing.T) {
	got := PlainText("  NSInvalidArgumentException in -[Parser parse:]  ")
	if got != "NSInvalidArgumentException in -[Parser parse:]" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestPlainText_StripsMarkup(t *testing.T) {
	got := PlainText("<b>java.lang.NullPointerException</b> in <code>MainActivity.onCreate</code>")
	if got != "java.lang.NullPointerException in MainActivity.onCreate" {
		t.Fatalf("unexpected result: %q", got)
	}
}
