package engine

import (
	"errors"
	"testing"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/certnum"
	"github.com/Spok95/drillcert/internal/models"
)

func f64(v float64) *float64 { return &v }

func TestValidateTemplate_Defaults(t *testing.T) {
	tpl, err := validateTemplate(TemplateInput{Name: " Default ", Content: "<p>{name}</p>"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if tpl.Name != "Default" {
		t.Fatalf("name not trimmed: %q", tpl.Name)
	}
	if tpl.PaperSize != models.PaperA4Landscape || tpl.NumberFormat != certnum.DefaultFormat {
		t.Fatalf("defaults not applied: %+v", tpl)
	}
	if tpl.BackgroundOpacity != defaultOpacity || tpl.Status != models.TemplateActive {
		t.Fatalf("unexpected opacity/status: %+v", tpl)
	}
}

func TestValidateTemplate_Rejects(t *testing.T) {
	cases := map[string]struct {
		in    TemplateInput
		field string
	}{
		"no name":            {TemplateInput{Content: "x"}, "name"},
		"blank content":      {TemplateInput{Name: "n", Content: "  "}, "content"},
		"opacity too low":    {TemplateInput{Name: "n", Content: "x", BackgroundOpacity: f64(0.05)}, "background_opacity"},
		"opacity too high":   {TemplateInput{Name: "n", Content: "x", BackgroundOpacity: f64(0.9)}, "background_opacity"},
		"bad paper":          {TemplateInput{Name: "n", Content: "x", PaperSize: "A3"}, "paper_size"},
		"no seq":             {TemplateInput{Name: "n", Content: "x", NumberFormat: "CERT-{YEAR}"}, "number_format"},
		"unreadable picture": {TemplateInput{Name: "n", Content: "x", Background: []byte("not an image")}, "background"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := validateTemplate(c.in)
			var ite *apperr.InvalidTemplateError
			if !errors.As(err, &ite) {
				t.Fatalf("want InvalidTemplateError, got %v", err)
			}
			if ite.Field != c.field {
				t.Fatalf("field = %q, want %q", ite.Field, c.field)
			}
		})
	}
}

func TestValidateTemplate_OpacityBoundsInclusive(t *testing.T) {
	for _, v := range []float64{models.MinBackgroundOpacity, models.MaxBackgroundOpacity} {
		if _, err := validateTemplate(TemplateInput{Name: "n", Content: "x", BackgroundOpacity: f64(v)}); err != nil {
			t.Fatalf("opacity %v rejected: %v", v, err)
		}
	}
}
