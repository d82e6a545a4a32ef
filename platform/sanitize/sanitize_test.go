package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := map[string]string{
		"<b>Leaking</b> tap":                      "Leaking tap",
		"&lt;script&gt;alert(1)&lt;/script&gt;ok": "alert(1)ok",
		"line one\r\n\r\n\r\n\r\nline   two":      "line one\n\nline two",
		"  padded  ":                              "padded",
	}
	for input, want := range cases {
		if got := Text(input); got != want {
			t.Fatalf("Text(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLine(t *testing.T) {
	if got := Line("  Amsterdam \n  <i>Noord</i> "); got != "Amsterdam Noord" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	in := "<p>x</p>"
	if got := TextPtr(&in); got == nil || *got != "x" {
		t.Fatalf("unexpected %v", got)
	}
}
