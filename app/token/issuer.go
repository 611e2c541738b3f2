package token

import "time"

// Issuer groups the three token kinds handed out by the account service.
type Issuer struct {
	Sessions *Sessions
	Links    *LinkSigner
	Resets   *ResetBroker
}

func NewIssuer(linkSecret, baseURL string, sessionTTL, resetTTL time.Duration) *Issuer {
	return &Issuer{
		Sessions: NewSessions(sessionTTL),
		Links:    NewLinkSigner(linkSecret, baseURL),
		Resets:   NewResetBroker(resetTTL),
	}
}
