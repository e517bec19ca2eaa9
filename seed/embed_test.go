package seed

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestEmbeddedCatalogIsWellFormed(t *testing.T) {
	raw, err := Files.ReadFile(DefaultCatalog)
	if err != nil {
		t.Fatalf("read embedded catalog: %v", err)
	}

	var catalog struct {
		Sets []struct {
			Name      string   `yaml:"name"`
			Questions []string `yaml:"questions"`
		} `yaml:"sets"`
	}
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		t.Fatalf("parse embedded catalog: %v", err)
	}
	if len(catalog.Sets) == 0 {
		t.Fatal("embedded catalog carries no sets")
	}
	for _, set := range catalog.Sets {
		if set.Name == "" {
			t.Fatal("embedded catalog carries an unnamed set")
		}
		if len(set.Questions) < 1 || len(set.Questions) > 5 {
			t.Fatalf("set %q carries %d questions, want 1 to 5", set.Name, len(set.Questions))
		}
		for _, q := range set.Questions {
			if q == "" {
				t.Fatalf("set %q carries an empty question", set.Name)
			}
		}
	}
}
