package testutils

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/laikahq/sync-engine/models"
)

var (
	vendors = []string{
		"github", "okta", "google_workspace", "datadog", "rippling", "aws", "jira",
	}

	departments = []string{
		"Engineering", "Security", "Sales", "Finance", "People Ops",
	}

	titles = []string{
		"Software Engineer", "Account Executive", "Security Analyst",
		"Engineering Manager", "Recruiter",
	}

	frequencies = []string{
		models.FrequencyDaily, models.FrequencyWeekly,
	}
)

// RandomOrganization returns an ACTIVE organization with a unique name.
func RandomOrganization() *models.Organization {
	return &models.Organization{
		ID:    uuid.New(),
		Name:  fmt.Sprintf("%s Inc", RandomString(8)),
		State: models.OrgStateActive,
	}
}

// RandomConnectionAccount returns a pending account for the organization
// with a random vendor, alias and sync frequency.
func RandomConnectionAccount(orgID uuid.UUID) *models.ConnectionAccount {
	return &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Vendor:         PickOne(vendors),
		Alias:          fmt.Sprintf("%s account", RandomString(6)),
		Status:         models.StatusPending,
		Authentication: map[string]any{
			"access_token": RandomString(32),
		},
		Configuration: models.ConfigurationState{
			Credentials: map[string]any{},
			Settings:    map[string]any{},
			Frequency:   PickOne(frequencies),
		},
	}
}

// RandomObjectType returns an object type with text attributes. The first
// attribute is named "Id" so fixtures can serve as identity keys.
func RandomObjectType(orgID uuid.UUID, attributeCount int) *models.ObjectType {
	if attributeCount < 1 {
		attributeCount = 1
	}

	attrs := make([]models.ObjectAttribute, attributeCount)
	attrs[0] = models.ObjectAttribute{
		ID:        uuid.New(),
		Name:      "Id",
		Type:      models.AttributeText,
		Required:  true,
		SortIndex: 0,
	}
	for i := 1; i < attributeCount; i++ {
		attrs[i] = models.ObjectAttribute{
			ID:        uuid.New(),
			Name:      fmt.Sprintf("Field %s", RandomString(6)),
			Type:      models.AttributeText,
			SortIndex: i,
		}
	}

	name := RandomString(10)
	return &models.ObjectType{
		ID:             uuid.New(),
		OrganizationID: orgID,
		TypeName:       name,
		DisplayName:    fmt.Sprintf("Type %s", name),
		Attributes:     attrs,
	}
}

// RandomLaikaObject returns a non-deleted object under the given type and
// account. Data is populated for every attribute of the type.
func RandomLaikaObject(objectType *models.ObjectType, accountID uuid.UUID) *models.LaikaObject {
	data := make(map[string]any, len(objectType.Attributes))
	for _, attr := range objectType.Attributes {
		data[attr.Name] = RandomString(12)
	}

	return &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: accountID,
		Data:                data,
	}
}

// RandomPerson returns a newly discovered person tied to the account.
func RandomPerson(orgID, accountID uuid.UUID) *models.Person {
	return &models.Person{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		ConnectionAccountID: accountID,
		ExternalID:          RandomString(16),
		Email:               RandomEmail(),
		FirstName:           RandomString(6),
		LastName:            RandomString(8),
		Title:               PickOne(titles),
		Department:          PickOne(departments),
		DiscoveryState:      models.DiscoveryStateNew,
	}
}

// RandomVendorCandidate returns a freshly discovered SSO application.
func RandomVendorCandidate(orgID uuid.UUID) *models.VendorCandidate {
	return &models.VendorCandidate{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           fmt.Sprintf("App %s", RandomString(8)),
		NumberOfUsers:  RandomInt(1, 500),
		State:          models.DiscoveryStateNew,
	}
}
