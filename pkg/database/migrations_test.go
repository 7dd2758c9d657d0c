package database

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestMigrationsAreOrderedAndNamed(t *testing.T) {
	last := 0
	for _, m := range Migrations() {
		if m.Version <= last {
			t.Errorf("migration %d follows %d", m.Version, last)
		}
		last = m.Version

		for _, ci := range m.Indexes {
			seen := make(map[string]bool)
			for _, model := range ci.Models {
				if model.Options == nil || model.Options.Name == nil || *model.Options.Name == "" {
					t.Errorf("migration %d: unnamed index on %s", m.Version, ci.Collection)
					continue
				}
				name := *model.Options.Name
				if seen[name] {
					t.Errorf("migration %d: duplicate index name %s.%s", m.Version, ci.Collection, name)
				}
				seen[name] = true
			}
		}
	}
}

func TestClaimCredentialsAreUniqueWhenSet(t *testing.T) {
	want := map[string]bool{
		"redemption_code_unique":     false,
		"qr_code_unique":             false,
		"payment_reference_unique":   false,
		"checkout_session_id_unique": false,
	}
	for _, m := range Migrations() {
		for _, ci := range m.Indexes {
			if ci.Collection != "claims" {
				continue
			}
			for _, model := range ci.Models {
				name := *model.Options.Name
				if _, ok := want[name]; !ok {
					continue
				}
				if model.Options.Unique == nil || !*model.Options.Unique {
					t.Errorf("%s is not unique", name)
				}
				if _, ok := model.Options.PartialFilterExpression.(bson.M); !ok {
					t.Errorf("%s has no partial filter", name)
				}
				want[name] = true
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing claims index %s", name)
		}
	}
}

func TestRedemptionIsOnePerClaim(t *testing.T) {
	for _, m := range Migrations() {
		for _, ci := range m.Indexes {
			if ci.Collection != "redemptions" {
				continue
			}
			model := ci.Models[0]
			if *model.Options.Name != "claim_unique" || !*model.Options.Unique {
				t.Errorf("first redemptions index = %s", *model.Options.Name)
			}
			return
		}
	}
	t.Fatal("no redemptions indexes")
}
