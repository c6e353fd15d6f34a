package token

// Status discriminates the result of verifying a token. The three kinds are
// mutually exclusive and exhaustive: a token is valid, expired (signature
// fine, lifetime over) or invalid (everything else). Expiry is kept apart
// from invalidity because it is the one failure that is not suspicious and
// callers surface a different message for it.
type Status int

const (
	StatusValid Status = iota
	StatusExpired
	StatusInvalid
)

// Reason records why verification failed. It is internal detail: the auth
// guard collapses it to expired-vs-invalid before anything reaches a client,
// so the signing scheme leaks nothing through error shapes.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonSignatureInvalid
	ReasonMalformed
	ReasonIncompleteClaims
)

// Outcome is the result of Verify. Claims is set only when Status is
// StatusValid or StatusExpired (expired tokens still carry readable claims).
type Outcome struct {
	Status Status
	Reason Reason
	Claims *Claims
}

// Valid reports whether the token passed verification.
func (o Outcome) Valid() bool {
	return o.Status == StatusValid
}

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

func (r Reason) String() string {
	switch r {
	case ReasonSignatureInvalid:
		return "signature_invalid"
	case ReasonMalformed:
		return "malformed"
	case ReasonIncompleteClaims:
		return "incomplete_claims"
	default:
		return "none"
	}
}
