// Package alerts maps raw sync failures onto the user-facing error
// catalogue and raises vendor discovery alerts.
package alerts

import (
	"errors"
	"regexp"
)

type Severity int

const (
	// SeverityWarning keeps the account usable; the message is logged
	// but the run still counts as successful.
	SeverityWarning Severity = iota
	// SeverityError marks the account as errored and surfaces the
	// wizard message in the UI.
	SeverityError
)

// Well-known catalogue codes. Vendor adapters may also register their
// own codes through Register.
const (
	CodeUserInputError          = "USER_INPUT_ERROR"
	CodeDenialOfConsent         = "DENIAL_OF_CONSENT"
	CodeBadCredentials          = "BAD_CREDENTIALS"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeConnectionAlreadyExists = "CONNECTION_ALREADY_EXISTS"
	CodeConnectionTimeout       = "CONNECTION_TIMEOUT"
	CodeMissingConfiguration    = "MISSING_CONFIGURATION"
	CodeProviderServerError     = "PROVIDER_SERVER_ERROR"
	CodeBadMapping              = "SYNC_MAPPING_ERROR"
)

// Entry is one catalogue row.
type Entry struct {
	Code          string
	WizardMessage string
	Severity      Severity
}

// IntegrationAlert attaches a catalogue code to a vendor. A nil Pattern
// makes it the vendor's fallback; otherwise the raw error response is
// matched against Pattern, first match wins.
type IntegrationAlert struct {
	Vendor  string
	Code    string
	Pattern *regexp.Regexp
}

// Coded is implemented by errors that name their catalogue code
// explicitly; they bypass regex matching entirely.
type Coded interface {
	ErrorCode() string
}

// RawResponder is implemented by errors carrying the raw vendor response
// body, the input for regex-bearing integration alerts.
type RawResponder interface {
	RawResponse() string
}

type Catalogue struct {
	entries map[string]Entry
	alerts  map[string][]IntegrationAlert
}

func NewCatalogue() *Catalogue {
	return &Catalogue{
		entries: make(map[string]Entry),
		alerts:  make(map[string][]IntegrationAlert),
	}
}

func (c *Catalogue) Register(entry Entry) {
	c.entries[entry.Code] = entry
}

// AddAlert binds a catalogue code to a vendor, optionally guarded by a
// regex over the raw response. Alerts are consulted in registration
// order.
func (c *Catalogue) AddAlert(vendor, code string, pattern *regexp.Regexp) {
	c.alerts[vendor] = append(c.alerts[vendor], IntegrationAlert{Vendor: vendor, Code: code, Pattern: pattern})
}

// Entry returns the registered row for a code, or a bare error entry
// when the code was never registered.
func (c *Catalogue) Entry(code string) Entry {
	if entry, ok := c.entries[code]; ok {
		return entry
	}
	return Entry{Code: code, WizardMessage: c.entries[CodeUserInputError].WizardMessage, Severity: SeverityError}
}

// Translate resolves a sync failure to a catalogue entry. Lookup order:
// explicit code on the error, then the vendor's regex alerts against the
// raw response (first match wins), then the vendor's fallback alert,
// then the generic user-input entry.
func (c *Catalogue) Translate(vendor string, err error) Entry {
	var coded Coded
	if errors.As(err, &coded) {
		return c.Entry(coded.ErrorCode())
	}

	var raw RawResponder
	if errors.As(err, &raw) {
		body := raw.RawResponse()

		var fallback *IntegrationAlert
		for i := range c.alerts[vendor] {
			alert := &c.alerts[vendor][i]
			if alert.Pattern == nil {
				if fallback == nil {
					fallback = alert
				}
				continue
			}
			if alert.Pattern.MatchString(body) {
				return c.Entry(alert.Code)
			}
		}

		if fallback != nil {
			return c.Entry(fallback.Code)
		}
	}

	return c.Entry(CodeUserInputError)
}
