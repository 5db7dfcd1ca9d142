package objectspec

import "github.com/laikahq/sync-engine/models"

// Attribute name constants shared by mappers. Only the identity-ish ones
// are named; vendor mappers reference the rest by display name.
const (
	AttrID          = "Id"
	AttrSourceSystem = "Source System"
	AttrConnection  = "Connection Name"
)

// The ten specs of the uniform object model.
var (
	User = Spec{
		TypeName:    "user",
		DisplayName: "Integration User",
		Color:       "accentRed",
		Icon:        "person",
		Attributes: []Attribute{
			{Name: AttrID, Type: models.AttributeText, Required: true, MinWidth: 120},
			{Name: "First Name", Type: models.AttributeText, MinWidth: 140},
			{Name: "Last Name", Type: models.AttributeText, MinWidth: 140},
			{Name: "Email", Type: models.AttributeText, Required: true, MinWidth: 200},
			{Name: "Is Admin", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: "Title", Type: models.AttributeText, MinWidth: 140},
			{Name: "Organization Name", Type: models.AttributeText, MinWidth: 160},
			{Name: "Roles", Type: models.AttributeJSON, MinWidth: 160},
			{Name: "Groups", Type: models.AttributeJSON, MinWidth: 160},
			{Name: "Mfa Enabled", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: "Mfa Enforced", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}

	Repository = Spec{
		TypeName:    "repository",
		DisplayName: "Repository",
		Color:       "accentBlue",
		Icon:        "storage",
		Attributes: []Attribute{
			{Name: "Name", Type: models.AttributeText, Required: true, MinWidth: 200},
			{Name: "Organization", Type: models.AttributeText, Required: true, MinWidth: 160},
			{Name: "Public URL", Type: models.AttributeText, MinWidth: 240},
			{Name: "Is Active", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: "Is Public", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: "Updated On", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Created On", Type: models.AttributeDate, MinWidth: 140},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}

	PullRequest = Spec{
		TypeName:    "pull_request",
		DisplayName: "Pull Request",
		Color:       "accentGreen",
		Icon:        "merge_type",
		Attributes: []Attribute{
			{Name: "Key", Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: "Repository", Type: models.AttributeText, Required: true, MinWidth: 200},
			{Name: "Target", Type: models.AttributeText, MinWidth: 140},
			{Name: "Source", Type: models.AttributeText, MinWidth: 140},
			{Name: "State", Type: models.AttributeText, MinWidth: 100},
			{Name: "Title", Type: models.AttributeText, MinWidth: 240},
			{Name: "Is Verified", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: "Is Approved", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: "Url", Type: models.AttributeText, MinWidth: 240},
			{Name: "Approvers", Type: models.AttributeText, MinWidth: 160},
			{Name: "Reporter", Type: models.AttributeText, MinWidth: 140},
			{Name: "Created On", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Updated On", Type: models.AttributeDate, MinWidth: 140},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}

	ChangeRequest = Spec{
		TypeName:    "change_request",
		DisplayName: "Change Request",
		Color:       "accentYellow",
		Icon:        "fact_check",
		Attributes: []Attribute{
			{Name: "Key", Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: "Title", Type: models.AttributeText, MinWidth: 240},
			{Name: "Description", Type: models.AttributeText, MinWidth: 280},
			{Name: "Issue Type", Type: models.AttributeText, MinWidth: 120},
			{Name: "Epic", Type: models.AttributeText, MinWidth: 140},
			{Name: "Project", Type: models.AttributeText, MinWidth: 140},
			{Name: "Assignee", Type: models.AttributeText, MinWidth: 140},
			{Name: "Reporter", Type: models.AttributeText, MinWidth: 140},
			{Name: "Status", Type: models.AttributeSingleSelect, MinWidth: 120},
			{Name: "Approver", Type: models.AttributeText, MinWidth: 140},
			{Name: "Started", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Transitions History", Type: models.AttributeJSON, MinWidth: 200},
			{Name: "Url", Type: models.AttributeText, MinWidth: 240},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}

	Monitor = Spec{
		TypeName:    "monitor",
		DisplayName: "Monitor",
		Color:       "accentOrange",
		Icon:        "monitor_heart",
		Attributes: []Attribute{
			{Name: AttrID, Type: models.AttributeText, Required: true, MinWidth: 120},
			{Name: "Name", Type: models.AttributeText, Required: true, MinWidth: 200},
			{Name: "Type", Type: models.AttributeText, MinWidth: 120},
			{Name: "Query", Type: models.AttributeText, MinWidth: 280},
			{Name: "Message", Type: models.AttributeText, MinWidth: 280},
			{Name: "Tags", Type: models.AttributeJSON, MinWidth: 160},
			{Name: "Overall State", Type: models.AttributeText, MinWidth: 120},
			{Name: "Created At", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Created By", Type: models.AttributeText, MinWidth: 140},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}

	Event = Spec{
		TypeName:    "event",
		DisplayName: "Event",
		Color:       "accentPurple",
		Icon:        "event_note",
		Attributes: []Attribute{
			{Name: AttrID, Type: models.AttributeText, Required: true, MinWidth: 120},
			{Name: "Title", Type: models.AttributeText, MinWidth: 240},
			{Name: "Text", Type: models.AttributeText, MinWidth: 280},
			{Name: "Type", Type: models.AttributeText, MinWidth: 120},
			{Name: "Host", Type: models.AttributeText, MinWidth: 140},
			{Name: "Source", Type: models.AttributeText, MinWidth: 140},
			{Name: "Epoch", Type: models.AttributeNumber, Required: true, MinWidth: 140},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}

	Account = Spec{
		TypeName:    "account",
		DisplayName: "Account",
		Color:       "accentGray",
		Icon:        "hub",
		Attributes: []Attribute{
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: "Owner", Type: models.AttributeUser, MinWidth: 140},
			{Name: "Created On", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Updated On", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Configurations", Type: models.AttributeJSON, MinWidth: 240},
			{Name: "Number of Records", Type: models.AttributeText, MinWidth: 200},
		},
	}

	Device = Spec{
		TypeName:    "device",
		DisplayName: "Device",
		Color:       "accentBlue",
		Icon:        "devices",
		Attributes: []Attribute{
			{Name: AttrID, Type: models.AttributeText, Required: true, MinWidth: 120},
			{Name: "Name", Type: models.AttributeText, MinWidth: 200},
			{Name: "Device Type", Type: models.AttributeText, MinWidth: 120},
			{Name: "Company Issued", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: "Serial Number", Type: models.AttributeText, MinWidth: 160},
			{Name: "Model", Type: models.AttributeText, MinWidth: 140},
			{Name: "Brand", Type: models.AttributeText, MinWidth: 140},
			{Name: "Operating System", Type: models.AttributeText, MinWidth: 140},
			{Name: "OS Version", Type: models.AttributeText, MinWidth: 120},
			{Name: "Location", Type: models.AttributeText, MinWidth: 140},
			{Name: "Owner", Type: models.AttributeText, MinWidth: 140},
			{Name: "Issuance Status", Type: models.AttributeSingleSelect, MinWidth: 120},
			{Name: "Anti Virus Status", Type: models.AttributeSingleSelect, MinWidth: 120},
			{Name: "Encryption Status", Type: models.AttributeSingleSelect, MinWidth: 120},
			{Name: "Purchased On", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Cost", Type: models.AttributeNumber, MinWidth: 100},
			{Name: "Note", Type: models.AttributeText, MinWidth: 200},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}

	ServiceAccount = Spec{
		TypeName:    "service_account",
		DisplayName: "Service Account",
		Color:       "accentGreen",
		Icon:        "smart_toy",
		Attributes: []Attribute{
			{Name: AttrID, Type: models.AttributeText, Required: true, MinWidth: 120},
			{Name: "Display Name", Type: models.AttributeText, Required: true, MinWidth: 200},
			{Name: "Description", Type: models.AttributeText, MinWidth: 240},
			{Name: "Owner Id", Type: models.AttributeText, MinWidth: 140},
			{Name: "Created Date", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Email", Type: models.AttributeText, MinWidth: 200},
			{Name: "Roles", Type: models.AttributeJSON, MinWidth: 160},
			{Name: "Is Active", Type: models.AttributeBoolean, MinWidth: 100},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}

	BackgroundCheck = Spec{
		TypeName:    "background_check",
		DisplayName: "Background Check",
		Color:       "accentRed",
		Icon:        "policy",
		Attributes: []Attribute{
			{Name: AttrID, Type: models.AttributeText, Required: true, MinWidth: 120},
			{Name: "First Name", Type: models.AttributeText, MinWidth: 140},
			{Name: "Last Name", Type: models.AttributeText, MinWidth: 140},
			{Name: "Email", Type: models.AttributeText, MinWidth: 200},
			{Name: "Check Name", Type: models.AttributeText, MinWidth: 180},
			{Name: "Status", Type: models.AttributeSingleSelect, MinWidth: 120},
			{Name: "Initiation Date", Type: models.AttributeDate, MinWidth: 140},
			{Name: "Package", Type: models.AttributeText, MinWidth: 140},
			{Name: "Estimated Completion Date", Type: models.AttributeDate, MinWidth: 160},
			{Name: "Link to People Table", Type: models.AttributeUser, MinWidth: 160},
			{Name: AttrSourceSystem, Type: models.AttributeText, Required: true, MinWidth: 140},
			{Name: AttrConnection, Type: models.AttributeText, Required: true, MinWidth: 140},
		},
	}
)

// All lists every registered spec.
func All() []*Spec {
	return []*Spec{
		&User, &ChangeRequest, &PullRequest, &Monitor, &Event,
		&Account, &Repository, &Device, &ServiceAccount, &BackgroundCheck,
	}
}

// ByTypeName resolves a registered spec by its type name.
func ByTypeName(name string) (*Spec, bool) {
	for _, s := range All() {
		if s.TypeName == name {
			return s, true
		}
	}
	return nil, false
}
