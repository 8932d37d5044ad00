package service

// disposableDomains are throwaway email providers whose addresses are never
// acceptable authentication identifiers. Checked case-insensitively against
// the email's domain part.
var disposableDomains = map[string]struct{}{
	"10minutemail.com":  {},
	"dispostable.com":   {},
	"fakeinbox.com":     {},
	"getnada.com":       {},
	"guerrillamail.com": {},
	"maildrop.cc":       {},
	"mailinator.com":    {},
	"mintemail.com":     {},
	"mohmal.com":        {},
	"sharklasers.com":   {},
	"temp-mail.org":     {},
	"tempmail.com":      {},
	"throwawaymail.com": {},
	"trashmail.com":     {},
	"yopmail.com":       {},
}

func isDisposableDomain(domain string) bool {
	_, ok := disposableDomains[domain]
	return ok
}
