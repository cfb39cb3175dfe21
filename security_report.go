package goIdentity

import "time"

// SecurityReport summarizes the security-relevant settings an Engine runs
// with. The daemon logs it at startup.
type SecurityReport struct {
	SigningAlgorithm         string
	AccessTTL                time.Duration
	RefreshTTL               time.Duration
	PurposeTokenTTL          time.Duration
	Argon2                   PasswordConfigReport
	PolicyMinLength          int
	PurposeThrottleActive    bool
	GrantRevocationOnChange  bool
	DummyPasswordHashing     bool
	AuditActive              bool
	MaxCommitAttempts        int
	CustomTokenIssuer        bool
	SubjectRevocationCapable bool
}

// PasswordConfigReport mirrors the argon2id cost parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	_, defaultIssuer := e.issuer.(*Issuer)

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		PurposeTokenTTL:  e.config.Tokens.PurposeTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		PolicyMinLength:          e.config.PasswordPolicy.MinLength,
		PurposeThrottleActive:    e.purposeLimiter != nil,
		GrantRevocationOnChange:  e.config.Security.RevokeGrantsOnCredentialChange && e.revoker != nil,
		DummyPasswordHashing:     e.dummyHash != "",
		AuditActive:              e.audit != nil,
		MaxCommitAttempts:        e.config.Security.MaxCommitAttempts,
		CustomTokenIssuer:        !defaultIssuer,
		SubjectRevocationCapable: e.revoker != nil,
	}
}
