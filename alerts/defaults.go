package alerts

import "regexp"

// Vendor names used across the engine.
const (
	VendorGitHub          = "github"
	VendorOkta            = "okta"
	VendorGoogleWorkspace = "google_workspace"
	VendorDatadog         = "datadog"
	VendorRippling        = "rippling"
	VendorAWS             = "aws"
	VendorJira            = "jira"
)

// Vendor-specific catalogue codes.
const (
	CodeInvalidOktaAPIKey          = "INVALID_OKTA_API_KEY"
	CodeInvalidDatadogKeys         = "INVALID_DATADOG_KEYS"
	CodeInvalidGitHubToken         = "INVALID_GITHUB_TOKEN"
	CodeNoGitHubOrgSelected        = "NO_GITHUB_ORGANIZATION_SELECTED"
	CodeInvalidAWSRole             = "INVALID_AWS_ROLE"
	CodeInsufficientAWSPermissions = "INSUFFICIENT_AWS_PERMISSIONS"
	CodeInvalidRipplingAPIKey      = "INVALID_RIPPLING_API_KEY"
	CodeInvalidJiraSite            = "INVALID_JIRA_SITE"
	CodeGoogleAdminRequired        = "GOOGLE_ADMIN_REQUIRED"
)

// DefaultCatalogue builds the catalogue shipped with the engine: the
// generic entries plus the per-vendor alert bindings.
func DefaultCatalogue() *Catalogue {
	c := NewCatalogue()

	for _, entry := range []Entry{
		{Code: CodeUserInputError, WizardMessage: "Something went wrong validating your connection. Please review your credentials and try again.", Severity: SeverityError},
		{Code: CodeDenialOfConsent, WizardMessage: "Access was not granted. Please approve the requested permissions to connect.", Severity: SeverityError},
		{Code: CodeBadCredentials, WizardMessage: "The credentials provided were rejected by the vendor.", Severity: SeverityError},
		{Code: CodeInsufficientPermissions, WizardMessage: "The connected account does not have enough permissions to read the required data.", Severity: SeverityError},
		{Code: CodeConnectionAlreadyExists, WizardMessage: "This connection already exists in your organization.", Severity: SeverityError},
		{Code: CodeConnectionTimeout, WizardMessage: "The sync took too long and was cancelled. It will be retried on the next schedule.", Severity: SeverityError},
		{Code: CodeMissingConfiguration, WizardMessage: "The connection is missing a required selection. Please finish configuring it.", Severity: SeverityError},
		{Code: CodeProviderServerError, WizardMessage: "The vendor is having trouble right now. We will retry automatically.", Severity: SeverityWarning},
		{Code: CodeBadMapping, WizardMessage: "We could not process the data returned by the vendor. Our team has been notified.", Severity: SeverityError},

		{Code: CodeInvalidOktaAPIKey, WizardMessage: "The Okta API token is invalid or expired.", Severity: SeverityError},
		{Code: CodeInvalidDatadogKeys, WizardMessage: "The Datadog API key or application key is invalid.", Severity: SeverityError},
		{Code: CodeInvalidGitHubToken, WizardMessage: "GitHub rejected the stored token. Please reconnect the integration.", Severity: SeverityError},
		{Code: CodeNoGitHubOrgSelected, WizardMessage: "No GitHub organization is selected for this connection.", Severity: SeverityError},
		{Code: CodeInvalidAWSRole, WizardMessage: "The AWS role could not be assumed. Check the role ARN and external ID.", Severity: SeverityError},
		{Code: CodeInsufficientAWSPermissions, WizardMessage: "The AWS role is missing the required read permissions.", Severity: SeverityError},
		{Code: CodeInvalidRipplingAPIKey, WizardMessage: "The Rippling API key is invalid or expired.", Severity: SeverityError},
		{Code: CodeInvalidJiraSite, WizardMessage: "The Jira site for this connection is no longer accessible.", Severity: SeverityError},
		{Code: CodeGoogleAdminRequired, WizardMessage: "The Google Workspace connection requires an administrator account.", Severity: SeverityError},
	} {
		c.Register(entry)
	}

	c.AddAlert(VendorOkta, CodeInvalidOktaAPIKey, regexp.MustCompile(`E0000011|Invalid token provided`))
	c.AddAlert(VendorOkta, CodeInsufficientPermissions, regexp.MustCompile(`E0000006`))
	c.AddAlert(VendorOkta, CodeBadCredentials, nil)

	c.AddAlert(VendorDatadog, CodeInvalidDatadogKeys, regexp.MustCompile(`Forbidden|API key is invalid`))
	c.AddAlert(VendorDatadog, CodeBadCredentials, nil)

	c.AddAlert(VendorGitHub, CodeInvalidGitHubToken, regexp.MustCompile(`Bad credentials|401 Unauthorized`))
	c.AddAlert(VendorGitHub, CodeInsufficientPermissions, regexp.MustCompile(`Resource not accessible by integration`))
	c.AddAlert(VendorGitHub, CodeBadCredentials, nil)

	c.AddAlert(VendorGoogleWorkspace, CodeGoogleAdminRequired, regexp.MustCompile(`Not Authorized to access this resource/api`))
	c.AddAlert(VendorGoogleWorkspace, CodeBadCredentials, nil)

	c.AddAlert(VendorRippling, CodeInvalidRipplingAPIKey, regexp.MustCompile(`(?i)invalid api key|authentication failed`))
	c.AddAlert(VendorRippling, CodeBadCredentials, nil)

	c.AddAlert(VendorJira, CodeInvalidJiraSite, regexp.MustCompile(`Site temporarily unavailable|No accessible resources`))
	c.AddAlert(VendorJira, CodeBadCredentials, nil)

	c.AddAlert(VendorAWS, CodeInsufficientAWSPermissions, regexp.MustCompile(`AccessDenied|UnauthorizedOperation`))
	c.AddAlert(VendorAWS, CodeInvalidAWSRole, nil)

	return c
}
