package goIdentity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/session"
)

// Issuer is the default [TokenIssuer]. Access and ID tokens are JWTs;
// refresh and purpose tokens are opaque base64url strings whose secret half
// is only stored as a SHA-256 in Redis.
//
// Refresh tokens are single-use: AuthenticateRefreshToken swaps the stored
// hash for a random one with a compare-and-swap script and then deletes the
// grant, so a replayed or concurrently presented token fails.
type Issuer struct {
	purposes   *stores.PurposeStore
	grants     *session.Store
	jwt        *jwt.Manager
	purposeTTL time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var (
	_ TokenIssuer    = (*Issuer)(nil)
	_ SubjectRevoker = (*Issuer)(nil)
)

// NewTokenIssuer builds an [Issuer] from cfg.JWT and cfg.Tokens.
func NewTokenIssuer(redisClient redis.UniversalClient, cfg Config) (*Issuer, error) {
	if redisClient == nil {
		return nil, errors.New("redis client required")
	}
	jm, err := newJWTManager(cfg.JWT)
	if err != nil {
		return nil, err
	}
	if cfg.Tokens.PurposeTTL <= 0 || cfg.JWT.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be > 0")
	}

	return &Issuer{
		purposes:   stores.NewPurposeStore(redisClient, cfg.Tokens.PurposePrefix),
		grants:     session.NewStore(redisClient, cfg.Tokens.RefreshPrefix),
		jwt:        jm,
		purposeTTL: cfg.Tokens.PurposeTTL,
		refreshTTL: cfg.JWT.RefreshTTL,
		now:        time.Now,
	}, nil
}

func newJWTManager(cfg JWTConfig) (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		IDTokenTTL:    cfg.IDTokenTTL,
		SigningMethod: jwt.SigningMethod(cfg.SigningMethod),
		PrivateKey:    cloneBytes(cfg.PrivateKey),
		PublicKey:     cloneBytes(cfg.PublicKey),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.Leeway,
		RequireIAT:    true,
		KeyID:         cfg.KeyID,
	})
}

// IssuePurposeToken stores a single-use record bound to accountID and extra.
func (i *Issuer) IssuePurposeToken(ctx context.Context, kind PurposeKind, accountID, extra string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown purpose kind %d", kind)
	}
	if accountID == "" {
		return "", errors.New("purpose token requires an account id")
	}

	id, err := internal.NewRecordID()
	if err != nil {
		return "", err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return "", err
	}

	record := &stores.PurposeRecord{
		Kind:       uint8(kind),
		SecretHash: secret.Hash(),
		AccountID:  accountID,
		Extra:      extra,
	}
	if err := i.purposes.Save(ctx, id.String(), record, i.purposeTTL); err != nil {
		return "", err
	}

	return internal.EncodeOpaqueToken(id, secret), nil
}

// ConsumePurposeToken atomically deletes the record behind token. Every
// rejection, including a kind mismatch, burns the record and reports
// [ErrPurposeTokenInvalid].
func (i *Issuer) ConsumePurposeToken(ctx context.Context, kind PurposeKind, token string) (PurposeClaims, error) {
	id, secret, err := internal.DecodeOpaqueToken(token)
	if err != nil {
		return PurposeClaims{}, ErrPurposeTokenInvalid
	}

	record, err := i.purposes.Consume(ctx, id.String(), secret.Hash(), uint8(kind))
	if err != nil {
		if errors.Is(err, stores.ErrPurposeNotFound) ||
			errors.Is(err, stores.ErrPurposeKindMismatch) ||
			errors.Is(err, stores.ErrPurposeSecretMismatch) {
			return PurposeClaims{}, ErrPurposeTokenInvalid
		}
		return PurposeClaims{}, err
	}

	return PurposeClaims{AccountID: record.AccountID, Extra: record.Extra}, nil
}

// IssueTokenSet signs an access token, persists a refresh grant carrying the
// principal and securityStamp, and signs an ID token when openid is granted.
func (i *Issuer) IssueTokenSet(ctx context.Context, principal ClaimsPrincipal, securityStamp string) (TokenSet, error) {
	if principal.Subject == "" {
		return TokenSet{}, errors.New("principal subject required")
	}
	scopes := append([]string(nil), principal.Scopes...)

	access, err := i.jwt.CreateAccess(principal.Subject, principal.Name, scopes)
	if err != nil {
		return TokenSet{}, err
	}

	id, err := internal.NewRecordID()
	if err != nil {
		return TokenSet{}, err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return TokenSet{}, err
	}

	now := i.now()
	grant := &session.Grant{
		GrantID:       id.String(),
		Subject:       principal.Subject,
		Name:          principal.Name,
		Scopes:        scopes,
		SecurityStamp: securityStamp,
		RefreshHash:   secret.Hash(),
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(i.refreshTTL).Unix(),
	}
	if err := i.grants.Save(ctx, grant, i.refreshTTL); err != nil {
		return TokenSet{}, err
	}

	set := TokenSet{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    i.jwt.AccessTTL(),
		RefreshToken: internal.EncodeOpaqueToken(id, secret),
		Scopes:       scopes,
	}

	if principal.HasScope(ScopeOpenID) {
		email := ""
		if principal.HasScope(ScopeEmail) {
			email = principal.Name
		}
		idToken, err := i.jwt.CreateID(principal.Subject, principal.Name, email)
		if err != nil {
			return TokenSet{}, err
		}
		set.IDToken = idToken
	}

	return set, nil
}

// AuthenticateRefreshToken consumes token and returns the principal it was
// issued for. Presenting a token whose secret does not match revokes the
// grant.
func (i *Issuer) AuthenticateRefreshToken(ctx context.Context, token string) (RefreshPrincipal, error) {
	id, secret, err := internal.DecodeOpaqueToken(token)
	if err != nil {
		return RefreshPrincipal{}, ErrRefreshTokenInvalid
	}
	burn, err := internal.NewSecret()
	if err != nil {
		return RefreshPrincipal{}, err
	}

	grant, err := i.grants.RotateRefreshHash(ctx, id.String(), secret.Hash(), burn.Hash())
	if err != nil {
		if errors.Is(err, session.ErrGrantNotFound) ||
			errors.Is(err, session.ErrRefreshHashMismatch) ||
			errors.Is(err, session.ErrGrantCorrupt) {
			return RefreshPrincipal{}, ErrRefreshTokenInvalid
		}
		return RefreshPrincipal{}, err
	}

	// The grant now holds a hash nobody knows, so a failed delete leaves
	// nothing usable behind.
	_ = i.grants.Delete(ctx, grant.GrantID)

	return RefreshPrincipal{
		ClaimsPrincipal: ClaimsPrincipal{
			Subject: grant.Subject,
			Name:    grant.Name,
			Scopes:  grant.Scopes,
		},
		SecurityStamp: grant.SecurityStamp,
	}, nil
}

// RevokeRefreshToken deletes the grant behind token. Unknown or malformed
// tokens are ignored.
func (i *Issuer) RevokeRefreshToken(ctx context.Context, token string) error {
	id, secret, err := internal.DecodeOpaqueToken(token)
	if err != nil {
		return nil
	}

	grant, err := i.grants.Get(ctx, id.String())
	if err != nil {
		if errors.Is(err, session.ErrGrantNotFound) {
			return nil
		}
		if errors.Is(err, session.ErrGrantCorrupt) {
			return i.grants.Delete(ctx, id.String())
		}
		return err
	}

	hash := secret.Hash()
	if subtle.ConstantTimeCompare(grant.RefreshHash[:], hash[:]) != 1 {
		return nil
	}
	return i.grants.Delete(ctx, grant.GrantID)
}

// AuthenticateAccessToken verifies a bearer access token. ID tokens are
// rejected.
func (i *Issuer) AuthenticateAccessToken(_ context.Context, token string) (ClaimsPrincipal, error) {
	claims, err := i.jwt.ParseAccess(token)
	if err != nil {
		return ClaimsPrincipal{}, fmt.Errorf("%w: %v", ErrAccessTokenInvalid, err)
	}

	return ClaimsPrincipal{
		Subject: claims.Subject,
		Name:    claims.Name,
		Scopes:  claims.Scopes(),
	}, nil
}

// RevokeSubject deletes every refresh grant indexed for subject.
func (i *Issuer) RevokeSubject(ctx context.Context, subject string) error {
	return i.grants.DeleteAllForSubject(ctx, subject)
}

// Ping checks Redis reachability.
func (i *Issuer) Ping(ctx context.Context) error {
	_, err := i.grants.Ping(ctx)
	return err
}
