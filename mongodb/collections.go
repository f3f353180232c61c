package mongodb

import "github.com/pilab-dev/talent-auth/domain"

const (
	CandidatesCollection    = "candidates"
	ProfessionalsCollection = "professionals"
	OrganizationsCollection = "organizations"
)

// CollectionFor maps an account kind to the collection holding its records.
func CollectionFor(kind domain.AccountKind) (string, error) {
	switch kind {
	case domain.AccountKindCandidate:
		return CandidatesCollection, nil
	case domain.AccountKindProfessional:
		return ProfessionalsCollection, nil
	case domain.AccountKindOrganization:
		return OrganizationsCollection, nil
	}
	return "", domain.ErrInvalidAccountKind
}
