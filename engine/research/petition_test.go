package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/LexaTechAI/lexa-mvp/engine/domain"
)

func validPetition() Petition {
	return Petition{
		FullName:     "Ayse Yilmaz",
		Address:      "Kadikoy, Istanbul",
		CourtName:    "Istanbul Anadolu 5. Aile Mahkemesi",
		CaseType:     "Divorce",
		OpponentName: "Mehmet Yilmaz",
		Details:      "Evlilik birligi temelinden sarsilmistir.",
	}
}

func TestPreparePetition(t *testing.T) {
	gen := &fakeGenerator{reply: "SAYIN MAHKEMEYE ..."}
	svc := newService(t, deps{gen: gen}, DefaultOptions())

	text, err := svc.PreparePetition(context.Background(), validPetition())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if text != "SAYIN MAHKEMEYE ..." {
		t.Fatalf("text = %q", text)
	}

	p := validPetition()
	prompt := gen.prompts[0]
	for _, want := range []string{p.FullName, p.Address, p.CourtName, p.CaseType, p.OpponentName, p.Details} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(prompt, "I respectfully submit this petition.") {
		t.Error("closing instruction missing from prompt")
	}
}

func TestPreparePetitionMissingFields(t *testing.T) {
	svc := newService(t, deps{}, DefaultOptions())

	p := validPetition()
	p.FullName = "  "
	p.Details = ""

	_, err := svc.PreparePetition(context.Background(), p)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, name := range []string{"full_name", "details"} {
		if !strings.Contains(verr.Value, name) {
			t.Errorf("missing field %q not reported: %q", name, verr.Value)
		}
	}
	if strings.Contains(verr.Value, "court_name") {
		t.Errorf("filled field reported missing: %q", verr.Value)
	}
}

func TestPreparePetitionAddressOptional(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc := newService(t, deps{gen: gen}, DefaultOptions())

	p := validPetition()
	p.Address = ""
	if _, err := svc.PreparePetition(context.Background(), p); err != nil {
		t.Fatalf("address must be optional: %v", err)
	}
}

func TestPreparePetitionGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model down")}
	svc := newService(t, deps{gen: gen}, DefaultOptions())

	if _, err := svc.PreparePetition(context.Background(), validPetition()); err == nil {
		t.Fatal("expected error")
	}
}
