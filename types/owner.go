package types

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/settle/id"
)

// OwnerKind discriminates the two possible owners of a document.
type OwnerKind string

const (
	OwnerIndividual   OwnerKind = "individual"
	OwnerOrganization OwnerKind = "organization"
)

// Owner identifies who a document belongs to: exactly one of an individual
// issuer or an organization. The tagged form makes the both-set and
// neither-set states unrepresentable.
type Owner struct {
	kind OwnerKind
	id   id.ID
}

// IndividualOwner returns an Owner for an individual user.
func IndividualOwner(userID id.UserID) Owner {
	return Owner{kind: OwnerIndividual, id: userID}
}

// OrganizationOwner returns an Owner for an organization.
func OrganizationOwner(orgID id.OrganizationID) Owner {
	return Owner{kind: OwnerOrganization, id: orgID}
}

// Kind returns the owner discriminator.
func (o Owner) Kind() OwnerKind { return o.kind }

// ID returns the owning user or organization ID.
func (o Owner) ID() id.ID { return o.id }

// IsOrganization returns true when the owner is an organization.
func (o Owner) IsOrganization() bool { return o.kind == OwnerOrganization }

// IsZero reports whether the owner was never set.
func (o Owner) IsZero() bool { return o.kind == "" }

// Equal returns true if both owners have the same kind and ID.
func (o Owner) Equal(other Owner) bool {
	return o.kind == other.kind && o.id.String() == other.id.String()
}

// String returns "kind:id" for logging.
func (o Owner) String() string {
	if o.IsZero() {
		return "<unowned>"
	}
	return fmt.Sprintf("%s:%s", o.kind, o.id.String())
}

type ownerJSON struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// MarshalJSON implements json.Marshaler.
func (o Owner) MarshalJSON() ([]byte, error) {
	return json.Marshal(ownerJSON{Kind: o.kind, ID: o.id.String()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Owner) UnmarshalJSON(data []byte) error {
	var raw ownerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind == "" && raw.ID == "" {
		*o = Owner{}
		return nil
	}

	switch raw.Kind {
	case OwnerIndividual, OwnerOrganization:
	default:
		return fmt.Errorf("types: unmarshal owner: unknown kind %q", raw.Kind)
	}

	parsed, err := id.Parse(raw.ID)
	if err != nil {
		return fmt.Errorf("types: unmarshal owner: %w", err)
	}

	*o = Owner{kind: raw.Kind, id: parsed}
	return nil
}
