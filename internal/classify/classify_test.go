package classify

import (
	"strings"
	"testing"

	"clipd/internal/clip"
)

func TestClassifyKinds(t *testing.T) {
	cases := []struct {
		name string
		text string
		want clip.Kind
	}{
		{"plain text", "hello world", clip.KindText},
		{"http url", "https://x.com", clip.KindURL},
		{"ftp url", "ftp://files.example.org/a.tar", clip.KindURL},
		{"url with spaces is text", "https://x.com and more", clip.KindText},
		{"email", "dev@example.com", clip.KindEmail},
		{"email with plus", "dev+tag@example.co.uk", clip.KindEmail},
		{"hex color short", "#fff", clip.KindColor},
		{"hex color long", "#1a2b3c", clip.KindColor},
		{"hex color alpha", "#1a2b3c80", clip.KindColor},
		{"integer", "42", clip.KindNumber},
		{"decimal", "3.14159", clip.KindNumber},
		{"negative grouped", "-1,234.56", clip.KindNumber},
		{"percent is text", "42%", clip.KindText},
		{"code block", "func main() {\n\tx := 1\n\tfmt.Println(x)\n}", clip.KindCode},
		{"single line dense", "a[i] = (b->c != d) ? e : f;", clip.KindCode},
		{"prose with one paren", "we met (briefly) at the office", clip.KindText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(clip.Payload{Text: tc.text})
			if got.Kind != tc.want {
				t.Errorf("Classify(%q) kind = %s, want %s", tc.text, got.Kind, tc.want)
			}
		})
	}
}

func TestClassifyImageWinsOverText(t *testing.T) {
	got := Classify(clip.Payload{Text: "https://x.com", Image: []byte{0x89, 'P', 'N', 'G'}})
	if got.Kind != clip.KindImage {
		t.Errorf("image payload classified as %s", got.Kind)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	p := clip.Payload{Text: "if err != nil {\n\treturn err\n}"}
	first := Classify(p)
	for i := 0; i < 50; i++ {
		if got := Classify(p); got != first {
			t.Fatalf("classification not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestPreviewFirstLineAndCap(t *testing.T) {
	got := Classify(clip.Payload{Text: "first line\nsecond line"})
	if got.Preview != "first line" {
		t.Errorf("preview = %q", got.Preview)
	}

	long := strings.Repeat("a", 500)
	got = Classify(clip.Payload{Text: long})
	if len([]rune(got.Preview)) != previewLimit+1 { // limit plus ellipsis
		t.Errorf("preview length = %d", len([]rune(got.Preview)))
	}
	if !strings.HasSuffix(got.Preview, "…") {
		t.Error("long preview missing ellipsis")
	}
}
