package render_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/render"
)

func ctx() render.Context {
	return render.Context{
		Name:              "Ana Ruiz",
		Date:              "March 3, 2026",
		Event:             "Flood Drill",
		CertificateNumber: "CERT-2026-0001",
		Score:             "85%",
		TrainingType:      "Search & Rescue",
	}
}

func TestSubstitute_AllTokens(t *testing.T) {
	in := "{name}|{date}|{event}|{certificate_number}|{score}|{training_type}"
	got, diags := render.Substitute(in, ctx())
	want := "Ana Ruiz|March 3, 2026|Flood Drill|CERT-2026-0001|85%|Search &amp; Rescue"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
}

func TestSubstitute_UnknownTokenLeftVerbatim(t *testing.T) {
	got, diags := render.Substitute("Hello {foo}, {name}!", ctx())
	if got != "Hello {foo}, Ana Ruiz!" {
		t.Fatalf("got %q", got)
	}
	if len(diags) != 1 || diags[0].Kind != render.DiagUnknownToken || diags[0].Detail != "{foo}" || diags[0].Offset != 6 {
		t.Fatalf("diagnostics: %+v", diags)
	}
}

func TestSubstitute_NumberFormatTokensAreNotContentTokens(t *testing.T) {
	got, _ := render.Substitute("{YEAR}-{SEQ}", ctx())
	if got != "{YEAR}-{SEQ}" {
		t.Fatalf("got %q", got)
	}
}

func TestSubstitute_ValuesAreEscapedAndNotRescanned(t *testing.T) {
	c := ctx()
	c.Name = "<b>{date}</b>"
	got, _ := render.Substitute("{name} {date}", c)
	if got != "&lt;b&gt;{date}&lt;/b&gt; March 3, 2026" {
		t.Fatalf("got %q", got)
	}
}

func TestSubstitute_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  string
		kinds []render.DiagnosticKind
	}{
		{"unclosed", "Dear {name", "Dear {name", []render.DiagnosticKind{render.DiagUnclosedBrace}},
		{"double open", "{{name}}", "{Ana Ruiz}", nil},
		{"css stays quiet", "<style>p { color: red }</style>{name}", "<style>p { color: red }</style>Ana Ruiz", nil},
		{"case matters", "{Name}", "{Name}", []render.DiagnosticKind{render.DiagUnknownToken}},
		{"empty braces", "{}", "{}", nil},
		{"stray close", "a } b {score}", "a } b 85%", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, diags := render.Substitute(tc.in, ctx())
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			if len(diags) != len(tc.kinds) {
				t.Fatalf("diagnostics %+v, want kinds %v", diags, tc.kinds)
			}
			for i, k := range tc.kinds {
				if diags[i].Kind != k {
					t.Fatalf("diag %d = %s, want %s", i, diags[i].Kind, k)
				}
			}
		})
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRender_Deterministic(t *testing.T) {
	tpl := models.CertificateTemplate{
		ID:                1,
		Content:           "<h1>{name}</h1><p>{event} {unknown}</p>",
		Background:        testPNG(t),
		BackgroundOpacity: 0.5,
		PaperSize:         models.PaperA4,
	}
	a := render.Render(tpl, ctx())
	b := render.Render(tpl, ctx())
	if a.HTML() != b.HTML() {
		t.Fatal("render is not deterministic")
	}
	if !bytes.Equal(a.Background, b.Background) {
		t.Fatal("background composite is not deterministic")
	}
	if render.ContentHash(a.HTML()) != render.ContentHash(b.HTML()) {
		t.Fatal("hash differs")
	}
	if !strings.Contains(a.HTML(), "size:A4 portrait") {
		t.Fatal("paper size not reflected in page css")
	}
}

func TestRender_BackgroundOpacity(t *testing.T) {
	doc := render.Render(models.CertificateTemplate{
		Content:           "x",
		Background:        testPNG(t),
		BackgroundOpacity: 0.5,
	}, ctx())
	if len(doc.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %+v", doc.Diagnostics)
	}
	img, err := png.Decode(bytes.NewReader(doc.Background))
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := img.At(1, 1).RGBA()
	// чёрный поверх белого при 0.5 даёт серый примерно посередине
	if v := r >> 8; v < 120 || v > 135 {
		t.Fatalf("composited channel = %d, want ~127", v)
	}
}

func TestRender_UnreadableBackgroundDegrades(t *testing.T) {
	doc := render.Render(models.CertificateTemplate{
		Content:           "{name}",
		Background:        []byte("not an image"),
		BackgroundOpacity: 0.3,
	}, ctx())
	if doc.Body != "Ana Ruiz" {
		t.Fatalf("body = %q", doc.Body)
	}
	if doc.Background != nil {
		t.Fatal("background must be dropped")
	}
	if len(doc.Diagnostics) != 1 || doc.Diagnostics[0].Kind != render.DiagBackgroundUnreadable {
		t.Fatalf("diagnostics: %+v", doc.Diagnostics)
	}
	if doc.PaperSize != models.PaperA4Landscape {
		t.Fatalf("default paper size = %s", doc.PaperSize)
	}
}

func TestClampOpacity(t *testing.T) {
	if render.ClampOpacity(0) != 0.1 || render.ClampOpacity(1) != 0.8 || render.ClampOpacity(0.4) != 0.4 {
		t.Fatal("clamp")
	}
}

func TestFormatScore(t *testing.T) {
	cases := map[float64]string{70: "70%", 72.5: "72.5%", 66.66666: "66.7%", 100: "100%", 0: "0%"}
	for in, want := range cases {
		if got := render.FormatScore(in); got != want {
			t.Fatalf("FormatScore(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseToken(t *testing.T) {
	for _, tok := range render.Tokens() {
		if render.ParseToken(tok.String()) != tok {
			t.Fatalf("round trip for %s", tok)
		}
	}
	if render.ParseToken("foo") != render.TokenUnknown {
		t.Fatal("foo must be unknown")
	}
	if render.TokenCertificateNumber.Placeholder() != "{certificate_number}" {
		t.Fatal("placeholder")
	}
}
