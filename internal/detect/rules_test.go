package detect

import (
	"testing"

	"github.com/evidlabel/did/internal/entity"
)

func findRule(t *testing.T, name string) Rule {
	t.Helper()
	for _, r := range GetDefaultRules() {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no rule named %q", name)
	return Rule{}
}

func TestRules(t *testing.T) {
	tests := []struct {
		rule  string
		text  string
		match string // "" means no match
	}{
		{"email", "write john.doe@example.com today", "john.doe@example.com"},
		{"email", "not an email: john at example", ""},
		{"cpr", "cpr 010203-1234 on file", "010203-1234"},
		{"cpr", "account 0102031234 has no dash", ""},
		{"phone_grouped", "ring 12 34 56 78 nu", "12 34 56 78"},
		{"phone_grouped", "version 1 2 3 is out", ""},
		{"address_us", "lives at 123 Main St, Springfield, US today", "123 Main St, Springfield, US"},
		{"address_da", "bor på Langelandsgade 14, 2.tv, 8000 Aarhus", "Langelandsgade 14, 2.tv, 8000 Aarhus"},
		{"person", "met John Doe yesterday", "John Doe"},
		{"person", "met JOHN DOE yesterday", "JOHN DOE"},
		{"person", "met Anne-Marie Hansen yesterday", "Anne-Marie Hansen"},
		{"person", "nothing capitalized here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.text, func(t *testing.T) {
			rule := findRule(t, tt.rule)
			loc := rule.Pattern.FindStringIndex(tt.text)
			if tt.match == "" {
				if loc != nil {
					t.Errorf("matched %q, want no match", tt.text[loc[0]:loc[1]])
				}
				return
			}
			if loc == nil {
				t.Fatalf("no match in %q", tt.text)
			}
			if got := tt.text[loc[0]:loc[1]]; got != tt.match {
				t.Errorf("matched %q, want %q", got, tt.match)
			}
		})
	}
}

func TestRuleLanguages(t *testing.T) {
	us := findRule(t, "address_us")
	if !us.appliesTo(LangEnglish) || us.appliesTo(LangDanish) {
		t.Error("address_us should apply to en only")
	}
	da := findRule(t, "address_da")
	if !da.appliesTo(LangDanish) || da.appliesTo(LangEnglish) {
		t.Error("address_da should apply to da only")
	}
	email := findRule(t, "email")
	if !email.appliesTo(LangEnglish) || !email.appliesTo(LangDanish) {
		t.Error("email should apply to all languages")
	}
}

func TestPlausibleName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"John Doe", true},
		{"John", true},
		{"Jens Otto Krag Hansen Jensen", false}, // more than three words
		{"Dear John", false},                    // stop word
		{"Regards", false},
		{"123 456", false}, // no letters
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlausibleName(tt.name); got != tt.want {
				t.Errorf("PlausibleName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestTrimStopWords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Contact John Doe", "John Doe"},
		{"Dear Jane Smith", "Jane Smith"},
		{"Hello Dear John", "John"},
		{"John Doe", "John Doe"},
		{"Regards", "Regards"}, // last word is never trimmed
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := tt.in[TrimStopWords(tt.in):]; got != tt.want {
				t.Errorf("TrimStopWords(%q) left %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPersonRuleKind(t *testing.T) {
	if findRule(t, "person").Kind != entity.Person {
		t.Error("person rule has wrong kind")
	}
	if findRule(t, "phone_grouped").Kind != entity.PhoneNumber {
		t.Error("phone_grouped rule has wrong kind")
	}
}
