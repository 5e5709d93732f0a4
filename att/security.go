package att

// SecurityLevel orders the link security states a connection may be
// in, from none to the strongest LE Secure Connections pairing.
type SecurityLevel int

const (
	NoSecurity SecurityLevel = iota
	Encrypted
	Authenticated
	SecureConnections
)

// SecurityProperties describes the current security state of a link,
// as reported by the bearer. This package never negotiates or
// upgrades security itself; it only gates requests against whatever
// the bearer reports.
type SecurityProperties struct {
	Level          SecurityLevel
	EncryptionKeySize int
}

// AccessRequirements is the (allowed, encryption, authentication,
// authorization, min key size) tuple that gates a read or write of
// an attribute. The zero value disallows access entirely.
type AccessRequirements struct {
	allowed                bool
	encryptionRequired     bool
	authenticationRequired bool
	authorizationRequired  bool
	minEncryptionKeySize   int
}

// NewAccessRequirements builds an AccessRequirements that allows
// access, gated by the given security requirements. A minEncKeySize
// of 0 means no minimum is enforced beyond what encryption requires.
func NewAccessRequirements(encryption, authentication, authorization bool, minEncKeySize int) AccessRequirements {
	return AccessRequirements{
		allowed:                true,
		encryptionRequired:     encryption,
		authenticationRequired: authentication,
		authorizationRequired:  authorization,
		minEncryptionKeySize:   minEncKeySize,
	}
}

// Allowed reports whether this attribute may be accessed at all.
func (a AccessRequirements) Allowed() bool { return a.allowed }

// AllowedWithoutSecurity reports whether access requires no security
// whatsoever: no encryption, authentication, or authorization.
func (a AccessRequirements) AllowedWithoutSecurity() bool {
	return a.allowed && !a.encryptionRequired && !a.authenticationRequired && !a.authorizationRequired
}

func (a AccessRequirements) EncryptionRequired() bool     { return a.encryptionRequired }
func (a AccessRequirements) AuthenticationRequired() bool { return a.authenticationRequired }
func (a AccessRequirements) AuthorizationRequired() bool  { return a.authorizationRequired }
func (a AccessRequirements) MinEncryptionKeySize() int    { return a.minEncryptionKeySize }

// notPermitted is returned by Check when access is disallowed outright;
// the caller substitutes ErrReadNotPermitted or ErrWriteNotPermitted
// depending on which operation is being gated.
const notPermitted ErrorCode = 0xFF

// Check evaluates this access requirement against the link's current
// security properties, per §4.4.1 of the ATT security gating rules.
// Authorization is never decided here: if authorization is required,
// Check succeeds at this layer and defers the actual decision to the
// service delegate in the handler.
func (a AccessRequirements) Check(sec SecurityProperties) ErrorCode {
	if !a.allowed {
		return notPermitted
	}
	if a.encryptionRequired {
		if sec.Level < Encrypted {
			return ErrInsufficientAuthn
		}
		if a.minEncryptionKeySize > 0 && sec.EncryptionKeySize < a.minEncryptionKeySize {
			return ErrInsufficientEncryption
		}
	}
	if a.authenticationRequired && sec.Level < Authenticated {
		return ErrInsufficientAuthn
	}
	return ErrNoError
}

// CheckRead is Check specialized for a read operation: a disallowed
// attribute reports ErrReadNotPermitted.
func (a AccessRequirements) CheckRead(sec SecurityProperties) ErrorCode {
	if code := a.Check(sec); code == notPermitted {
		return ErrReadNotPermitted
	} else {
		return code
	}
}

// CheckWrite is Check specialized for a write operation: a disallowed
// attribute reports ErrWriteNotPermitted.
func (a AccessRequirements) CheckWrite(sec SecurityProperties) ErrorCode {
	if code := a.Check(sec); code == notPermitted {
		return ErrWriteNotPermitted
	} else {
		return code
	}
}
