package contract

import (
	"fmt"
	"strings"
)

// Field describes one structured input a template interpolates.
type Field struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Template is a built-in legal template. FlatText produces the marked flat
// form used by the section-based preview flow; GenerateCells produces the
// initial cell list for the cell-based editor flow.
type Template struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
	Fields   []Field  `json:"fields"`

	flatText      func(fields map[string]string, variant string) string
	generateCells func(fields map[string]string, variant string) []Cell
}

// FlatText renders the template as a single flat string with
// SECTION_START/SECTION_END markers around each named span.
func (t *Template) FlatText(fields map[string]string, variant string) string {
	return t.flatText(fields, variant)
}

// GenerateCells instantiates the initial cell list from field data. Every
// cell is visible; schedule tables come out as table cells, everything else
// as rich text.
func (t *Template) GenerateCells(fields map[string]string, variant string) []Cell {
	return t.generateCells(fields, variant)
}

// Interpolate substitutes {{key}} placeholders with field values. Unknown
// placeholders are left in place so missing data is visible in the draft.
func Interpolate(text string, fields map[string]string) string {
	for key, value := range fields {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

func field(fields map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(fields[key]); v != "" {
		return v
	}
	return fallback
}

func section(id, body string) string {
	return fmt.Sprintf("<!-- SECTION_START: %s -->\n%s\n<!-- SECTION_END: %s -->", id, body, id)
}

func paragraph(text string) string {
	return "<p>" + text + "</p>"
}

// Variant values for the accredited-party selector shared by the built-in
// templates.
const (
	VariantIndividual = "individual"
	VariantCompany    = "company"
)

// Lookup returns the built-in template with the given id.
func Lookup(id string) (*Template, bool) {
	for _, t := range builtinTemplates {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Templates lists the built-in template catalog.
func Templates() []*Template {
	out := make([]*Template, len(builtinTemplates))
	copy(out, builtinTemplates)
	return out
}

var builtinTemplates = []*Template{serviceAgreement, mutualNDA}

var serviceAgreement = &Template{
	ID:       "service_agreement",
	Name:     "Service Agreement",
	Variants: []string{VariantIndividual, VariantCompany},
	Fields: []Field{
		{Key: "client_name", Label: "Client name", Required: true},
		{Key: "provider_name", Label: "Provider name", Required: true},
		{Key: "effective_date", Label: "Effective date", Required: true},
		{Key: "service_description", Label: "Description of services", Required: true},
		{Key: "monthly_fee", Label: "Monthly fee", Required: true},
		{Key: "payment_terms", Label: "Payment terms (days)"},
		{Key: "governing_law", Label: "Governing law"},
	},
	flatText: func(fields map[string]string, variant string) string {
		blocks := []string{
			section("parties", serviceAgreementParties(fields, variant)),
			section("services", fmt.Sprintf(
				"1. SERVICES\n\nThe Provider shall perform the following services: %s.",
				field(fields, "service_description", "{{service_description}}"))),
			section("fees_and_payment", fmt.Sprintf(
				"2. FEES AND PAYMENT\n\nThe Client shall pay the Provider a monthly fee of %s, due within %s days of invoice.",
				field(fields, "monthly_fee", "{{monthly_fee}}"),
				field(fields, "payment_terms", "30"))),
			section("term_and_termination",
				"3. TERM AND TERMINATION\n\nThis Agreement commences on the Effective Date and continues until terminated by either party on thirty (30) days' written notice."),
			section("confidentiality",
				"4. CONFIDENTIALITY\n\nEach party shall keep confidential all non-public information received from the other party in connection with this Agreement."),
			section("liability",
				"5. LIMITATION OF LIABILITY\n\nNeither party's aggregate liability under this Agreement shall exceed the fees paid in the twelve (12) months preceding the claim."),
			section("governing_law", fmt.Sprintf(
				"6. GOVERNING LAW\n\nThis Agreement is governed by the laws of %s.",
				field(fields, "governing_law", "England and Wales"))),
		}
		return strings.Join(blocks, "\n\n")
	},
	generateCells: func(fields map[string]string, variant string) []Cell {
		feeTable := RenderTable(
			[]string{"Item", "Amount", "Due"},
			[][]string{
				{"Monthly fee", field(fields, "monthly_fee", ""), "Within " + field(fields, "payment_terms", "30") + " days of invoice"},
			},
		)
		return []Cell{
			NewCell("Parties", paragraph(serviceAgreementParties(fields, variant))),
			NewCell("1. Services", paragraph(fmt.Sprintf(
				"The Provider shall perform the following services: %s.",
				field(fields, "service_description", "")))),
			NewCell("2. Fees and Payment", feeTable),
			NewCell("3. Term and Termination", paragraph(
				"This Agreement commences on the Effective Date and continues until terminated by either party on thirty (30) days' written notice.")),
			NewCell("4. Confidentiality", paragraph(
				"Each party shall keep confidential all non-public information received from the other party in connection with this Agreement.")),
			NewCell("5. Limitation of Liability", paragraph(
				"Neither party's aggregate liability under this Agreement shall exceed the fees paid in the twelve (12) months preceding the claim.")),
			NewCell("6. Governing Law", paragraph(fmt.Sprintf(
				"This Agreement is governed by the laws of %s.",
				field(fields, "governing_law", "England and Wales")))),
			NewCell("Signatures", paragraph(fmt.Sprintf(
				"Signed for and on behalf of %s and %s on %s.",
				field(fields, "client_name", "the Client"),
				field(fields, "provider_name", "the Provider"),
				field(fields, "effective_date", "the Effective Date")))),
		}
	},
}

func serviceAgreementParties(fields map[string]string, variant string) string {
	client := field(fields, "client_name", "{{client_name}}")
	provider := field(fields, "provider_name", "{{provider_name}}")
	date := field(fields, "effective_date", "{{effective_date}}")
	if variant == VariantCompany {
		return fmt.Sprintf(
			"SERVICE AGREEMENT\n\nThis Agreement is entered into on %s between %s, a company duly incorporated under applicable law (the \"Client\"), and %s (the \"Provider\").",
			date, client, provider)
	}
	return fmt.Sprintf(
		"SERVICE AGREEMENT\n\nThis Agreement is entered into on %s between %s, an individual (the \"Client\"), and %s (the \"Provider\").",
		date, client, provider)
}

var mutualNDA = &Template{
	ID:       "mutual_nda",
	Name:     "Mutual Non-Disclosure Agreement",
	Variants: []string{VariantIndividual, VariantCompany},
	Fields: []Field{
		{Key: "party_a", Label: "First party", Required: true},
		{Key: "party_b", Label: "Second party", Required: true},
		{Key: "effective_date", Label: "Effective date", Required: true},
		{Key: "purpose", Label: "Purpose of disclosure", Required: true},
		{Key: "term_years", Label: "Term (years)"},
	},
	flatText: func(fields map[string]string, variant string) string {
		partyKind := "an individual"
		if variant == VariantCompany {
			partyKind = "a company"
		}
		blocks := []string{
			section("parties", fmt.Sprintf(
				"MUTUAL NON-DISCLOSURE AGREEMENT\n\nThis Agreement is made on %s between %s, %s, and %s.",
				field(fields, "effective_date", "{{effective_date}}"),
				field(fields, "party_a", "{{party_a}}"),
				partyKind,
				field(fields, "party_b", "{{party_b}}"))),
			section("purpose", fmt.Sprintf(
				"1. PURPOSE\n\nThe parties wish to exchange Confidential Information for the purpose of %s.",
				field(fields, "purpose", "{{purpose}}"))),
			section("obligations",
				"2. OBLIGATIONS\n\nEach party shall hold the other party's Confidential Information in strict confidence and use it solely for the Purpose."),
			section("term", fmt.Sprintf(
				"3. TERM\n\nThe obligations in this Agreement survive for %s years from the Effective Date.",
				field(fields, "term_years", "3"))),
		}
		return strings.Join(blocks, "\n\n")
	},
	generateCells: func(fields map[string]string, variant string) []Cell {
		partyKind := "an individual"
		if variant == VariantCompany {
			partyKind = "a company"
		}
		return []Cell{
			NewCell("Parties", paragraph(fmt.Sprintf(
				"This Mutual Non-Disclosure Agreement is made on %s between %s, %s, and %s.",
				field(fields, "effective_date", ""),
				field(fields, "party_a", ""),
				partyKind,
				field(fields, "party_b", "")))),
			NewCell("1. Purpose", paragraph(fmt.Sprintf(
				"The parties wish to exchange Confidential Information for the purpose of %s.",
				field(fields, "purpose", "")))),
			NewCell("2. Obligations", paragraph(
				"Each party shall hold the other party's Confidential Information in strict confidence and use it solely for the Purpose.")),
			NewCell("3. Term", paragraph(fmt.Sprintf(
				"The obligations in this Agreement survive for %s years from the Effective Date.",
				field(fields, "term_years", "3")))),
		}
	},
}
