package types

import (
	"encoding/json"
	"testing"

	"github.com/xraph/settle/id"
)

func TestOwnerVariants(t *testing.T) {
	userID := id.NewUserID()
	orgID := id.NewOrganizationID()

	individual := IndividualOwner(userID)
	org := OrganizationOwner(orgID)

	if individual.Kind() != OwnerIndividual || individual.ID().String() != userID.String() {
		t.Errorf("individual owner: got %s", individual)
	}
	if org.Kind() != OwnerOrganization || org.ID().String() != orgID.String() {
		t.Errorf("organization owner: got %s", org)
	}
	if !org.IsOrganization() || individual.IsOrganization() {
		t.Error("IsOrganization discriminator wrong")
	}
	if individual.Equal(org) {
		t.Error("distinct owners reported equal")
	}
	if !individual.Equal(IndividualOwner(userID)) {
		t.Error("same owner reported unequal")
	}
}

func TestOwnerZero(t *testing.T) {
	var o Owner
	if !o.IsZero() {
		t.Error("zero-value owner should report IsZero")
	}
	if o.String() != "<unowned>" {
		t.Errorf("zero owner string: got %q", o.String())
	}
}

func TestOwnerJSON(t *testing.T) {
	original := OrganizationOwner(id.NewOrganizationID())

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored Owner
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !restored.Equal(original) {
		t.Errorf("round-trip mismatch: %s != %s", restored, original)
	}

	var bad Owner
	if err := json.Unmarshal([]byte(`{"kind":"committee","id":"org_x"}`), &bad); err == nil {
		t.Error("expected error for unknown owner kind")
	}
}
