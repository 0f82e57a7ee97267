package action

import "errors"

// User-facing messages.  The admin UI renders them as-is.
const (
	MsgSubdomainRequired = "Subdomain and icon are required"
	MsgDomainRequired    = "Domain and icon are required"
	MsgDomainOnly        = "Domain is required"
	MsgSubdomainOnly     = "Subdomain is required"
	MsgInvalidIcon       = "Please enter a valid emoji (maximum 10 characters)"
	MsgInvalidDomain     = "Please enter a valid domain name (e.g., myapp.com)"
	MsgSubdomainChars    = "Subdomain can only have lowercase letters, numbers, and hyphens. Please try again."
	MsgSubdomainTaken    = "This subdomain is already taken"
	MsgDomainTaken       = "This domain is already registered"
	MsgDomainDeleted     = "Domain deleted successfully"
	MsgSubdomainDeleted  = "Subdomain deleted successfully"
	MsgVerified          = "Domain verified successfully"
	MsgNotVerified       = "Domain verification failed. Please check your DNS settings."
	MsgGeneric           = "Something went wrong. Please try again."

	prefixAddFailed     = "Failed to add domain to Vercel: "
	prefixVerifyFailed  = "Failed to verify domain: "
	prefixDetailsFailed = "Failed to get verification details: "
	prefixDNSFailed     = "Failed to get DNS records: "
)

// ValidationError is bad user input.  Field names the offending form field.
// Suggestion, when set, is a corrected value the form can offer.
type ValidationError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError means the name is already registered.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ProviderError wraps a failed hosting-provider call.  Message already
// carries the provider's text.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is a *ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsProvider reports whether err is a *ProviderError.
func IsProvider(err error) bool {
	var p *ProviderError
	return errors.As(err, &p)
}

// UserMessage returns the text to show for err.  Typed errors carry their
// own message; anything else, such as a store outage, is generic.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsValidation(err) || IsConflict(err) || IsProvider(err) {
		return err.Error()
	}
	return MsgGeneric
}
