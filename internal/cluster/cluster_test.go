package cluster

import (
	"testing"

	"github.com/evidlabel/did/internal/entity"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		kind entity.Kind
		in   string
		want string
	}{
		{"lowercase", entity.Person, "John DOE", "john doe"},
		{"danish fold", entity.Person, "Søren Kierkegård", "soeren kierkegaard"},
		{"ae fold", entity.Person, "Næsgærd", "naesgaerd"},
		{"hyphen stripped", entity.Person, "Anne-Marie", "annemarie"},
		{"whitespace collapsed", entity.Person, "  John \t Doe \n", "john doe"},
		{"numeric digits only", entity.PhoneNumber, "12 34 56 78", "12345678"},
		{"numeric separators dropped", entity.PhoneNumber, "+45 12-34-56-78", "4512345678"},
		{"cpr", entity.CPRNumber, "123456-7890", "1234567890"},
		{"email lowercased", entity.Email, "John.Doe@Example.COM", "john.doe@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.kind, tt.in); got != tt.want {
				t.Errorf("Normalize(%s, %q) = %q, want %q", tt.kind, tt.in, got, tt.want)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	c := New(0.85)

	tests := []struct {
		name    string
		kind    entity.Kind
		a, b    string
		cluster bool
	}{
		{"identical", entity.Person, "John Doe", "John Doe", true},
		{"case variant", entity.Person, "John Doe", "john DOE", true},
		{"single edit", entity.Person, "John Doe", "Jon Doe", true},
		{"typo surname", entity.Person, "Jane Smith", "Jane Smyth", true},
		{"danish ascii spelling", entity.Person, "Søren Holm", "Soeren Holm", true},
		{"different people", entity.Person, "John Doe", "Jane Smith", false},
		{"same digits reformatted", entity.PhoneNumber, "12345678", "12 34 56 78", true},
		{"different numbers", entity.PhoneNumber, "1234567890", "12 34 56 78", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := c.Similarity(tt.kind, tt.a, tt.b)
			if got := score >= 0.85; got != tt.cluster {
				t.Errorf("Similarity(%q, %q) = %v, clusters = %v, want %v", tt.a, tt.b, score, got, tt.cluster)
			}
		})
	}
}

func TestCluster(t *testing.T) {
	c := New(0.85)

	t.Run("person variants merge", func(t *testing.T) {
		groups := c.Cluster(entity.Person, []string{"John Doe", "Jon Doe", "john DOE", "Jane Smith", "Jane Smyth"})
		if len(groups) != 2 {
			t.Fatalf("got %d groups, want 2", len(groups))
		}
		if len(groups[0].Variants) != 3 {
			t.Errorf("first group variants = %v, want 3", groups[0].Variants)
		}
		if groups[0].Variants[0] != "John Doe" {
			t.Errorf("first variant = %q, collection order must be preserved", groups[0].Variants[0])
		}
		if len(groups[1].Variants) != 2 {
			t.Errorf("second group variants = %v, want 2", groups[1].Variants)
		}
	})

	t.Run("ids left unassigned", func(t *testing.T) {
		groups := c.Cluster(entity.Person, []string{"John Doe"})
		if groups[0].ID != "" {
			t.Errorf("cluster assigned id %q, minting belongs to reconciliation", groups[0].ID)
		}
	})

	t.Run("numeric formats merge with pattern", func(t *testing.T) {
		groups := c.Cluster(entity.PhoneNumber, []string{"12 34 56 78", "12345678"})
		if len(groups) != 1 {
			t.Fatalf("got %d groups, want 1", len(groups))
		}
		want := `\b\d{2}[\s./-]+\d{2}[\s./-]+\d{2}[\s./-]+\d{2}\b`
		if groups[0].Pattern != want {
			t.Errorf("pattern = %q, want %q", groups[0].Pattern, want)
		}
	})

	t.Run("plain digit run has no pattern", func(t *testing.T) {
		groups := c.Cluster(entity.PhoneNumber, []string{"12345678"})
		if groups[0].Pattern != "" {
			t.Errorf("pattern = %q, want none for an unseparated number", groups[0].Pattern)
		}
	})

	t.Run("blank texts skipped", func(t *testing.T) {
		groups := c.Cluster(entity.PhoneNumber, []string{"no digits here"})
		if len(groups) != 0 {
			t.Fatalf("got %d groups, want 0", len(groups))
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		texts := []string{"John Doe", "Jane Smith", "Jon Doe", "Jane Smyth"}
		a := c.Cluster(entity.Person, texts)
		b := c.Cluster(entity.Person, texts)
		if len(a) != len(b) {
			t.Fatalf("group counts differ: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if len(a[i].Variants) != len(b[i].Variants) {
				t.Fatalf("group %d sizes differ", i)
			}
			for j := range a[i].Variants {
				if a[i].Variants[j] != b[i].Variants[j] {
					t.Errorf("group %d variant %d differs: %q vs %q", i, j, a[i].Variants[j], b[i].Variants[j])
				}
			}
		}
	})
}

func TestReconcile(t *testing.T) {
	c := New(0.85)

	t.Run("empty set gets sequential ids", func(t *testing.T) {
		set := entity.NewSet()
		fresh := map[entity.Kind][]*entity.Group{
			entity.Person: {
				{Variants: []string{"John Doe", "Jon Doe"}},
				{Variants: []string{"Jane Smith"}},
			},
		}
		if !c.Reconcile(set, fresh) {
			t.Fatal("Reconcile() = false, want true for new groups")
		}
		if set.Names[0].ID != "<PERSON_1>" || set.Names[1].ID != "<PERSON_2>" {
			t.Errorf("ids = %q, %q", set.Names[0].ID, set.Names[1].ID)
		}
	})

	t.Run("similar variant merges into existing group", func(t *testing.T) {
		set := entity.NewSet()
		set.Append(entity.Person, &entity.Group{ID: "<PERSON_1>", Variants: []string{"John Doe"}})

		fresh := map[entity.Kind][]*entity.Group{
			entity.Person: {{Variants: []string{"Jon Doe"}}},
		}
		if !c.Reconcile(set, fresh) {
			t.Fatal("Reconcile() = false, want true")
		}
		if len(set.Names) != 1 {
			t.Fatalf("got %d groups, want the variant merged", len(set.Names))
		}
		if !set.Names[0].HasVariant("Jon Doe") {
			t.Errorf("variants = %v, missing merged variant", set.Names[0].Variants)
		}
	})

	t.Run("dissimilar variant gets next id", func(t *testing.T) {
		set := entity.NewSet()
		set.Append(entity.Person, &entity.Group{ID: "<PERSON_1>", Variants: []string{"John Doe"}})
		set.Append(entity.Person, &entity.Group{ID: "<PERSON_2>", Variants: []string{"Jane Smith"}})

		fresh := map[entity.Kind][]*entity.Group{
			entity.Person: {{Variants: []string{"Alice Wonder"}}},
		}
		c.Reconcile(set, fresh)
		if len(set.Names) != 3 || set.Names[2].ID != "<PERSON_3>" {
			t.Fatalf("new group = %+v, want appended as <PERSON_3>", set.Names[len(set.Names)-1])
		}
	})

	t.Run("known id merges directly", func(t *testing.T) {
		set := entity.NewSet()
		set.Append(entity.Person, &entity.Group{ID: "<PERSON_1>", Variants: []string{"John Doe"}})

		fresh := map[entity.Kind][]*entity.Group{
			entity.Person: {{ID: "<PERSON_1>", Variants: []string{"J. Doe"}}},
		}
		c.Reconcile(set, fresh)
		if len(set.Names) != 1 || !set.Names[0].HasVariant("J. Doe") {
			t.Fatalf("set = %+v, want direct merge by id", set.Names)
		}
	})

	t.Run("pattern adopted from fresh group", func(t *testing.T) {
		set := entity.NewSet()
		set.Append(entity.PhoneNumber, &entity.Group{ID: "<NUMBER_1>", Variants: []string{"12345678"}})

		fresh := map[entity.Kind][]*entity.Group{
			entity.PhoneNumber: {{
				Variants: []string{"12 34 56 78"},
				Pattern:  `\b\d{2}[\s./-]+\d{2}[\s./-]+\d{2}[\s./-]+\d{2}\b`,
			}},
		}
		c.Reconcile(set, fresh)
		if len(set.Numbers) != 1 {
			t.Fatalf("got %d groups, want merged", len(set.Numbers))
		}
		if set.Numbers[0].Regexp() == nil {
			t.Error("pattern not adopted and compiled")
		}
	})

	t.Run("reconcile is idempotent", func(t *testing.T) {
		set := entity.NewSet()
		freshOnce := map[entity.Kind][]*entity.Group{
			entity.Person: {{Variants: []string{"John Doe", "Jon Doe"}}},
		}
		c.Reconcile(set, freshOnce)

		freshAgain := map[entity.Kind][]*entity.Group{
			entity.Person: {{Variants: []string{"John Doe", "Jon Doe"}}},
		}
		if c.Reconcile(set, freshAgain) {
			t.Error("Reconcile() = true on identical input, want no change")
		}
		if len(set.Names) != 1 || len(set.Names[0].Variants) != 2 {
			t.Errorf("set mutated: %+v", set.Names)
		}
	})
}
