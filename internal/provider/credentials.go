package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apache/iceberg-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"icegate/internal/domain"
)

// Credential property keys.
const (
	PropCredentialType     = "credential.type"
	PropJWTSecret          = "credential.jwt.secret"
	PropJWTIssuer          = "credential.jwt.issuer"
	PropJWTSubject         = "credential.jwt.subject"
	PropJWTAudience        = "credential.jwt.audience"
	PropJWTTTL             = "credential.jwt.ttl"
	PropS3AccessKeyID      = "s3.access-key-id"
	PropS3SecretAccessKey  = "s3.secret-access-key"
	PropS3SessionToken     = "s3.session-token"
	PropToken              = "token"
	credentialPropertyRoot = "credential."
)

// DefaultJWTTTL is the lifetime of minted bearer tokens.
const DefaultJWTTTL = 15 * time.Minute

// CredentialSource produces the time-limited properties a backend needs.
// Refresh reports changed=true when this call rotated the material. Callers
// that may fail to apply the new material compare props with what they last
// loaded rather than relying on changed alone.
type CredentialSource interface {
	Refresh(ctx context.Context) (props iceberg.Properties, changed bool, err error)
}

// NewCredentialSource builds the source selected by the credential.type property.
func NewCredentialSource(catalogName string, props map[string]string, now func() time.Time) (CredentialSource, error) {
	switch kind := strings.ToLower(props[PropCredentialType]); kind {
	case "", "none":
		return noCredentials{}, nil
	case "jwt":
		ttl := DefaultJWTTTL
		if v := props[PropJWTTTL]; v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return nil, domain.ErrConfiguration("invalid %s %q", PropJWTTTL, v)
			}
			ttl = d
		}
		subject := props[PropJWTSubject]
		if subject == "" {
			subject = catalogName
		}
		return NewJWTCredentials(JWTConfig{
			Secret:   props[PropJWTSecret],
			Issuer:   props[PropJWTIssuer],
			Subject:  subject,
			Audience: props[PropJWTAudience],
			TTL:      ttl,
			Now:      now,
		})
	case "aws":
		if props[PropS3AccessKeyID] == "" || props[PropS3SecretAccessKey] == "" {
			return nil, domain.ErrConfiguration("credential.type aws requires %s and %s", PropS3AccessKeyID, PropS3SecretAccessKey)
		}
		return NewAWSCredentials(credentials.NewStaticCredentialsProvider(
			props[PropS3AccessKeyID], props[PropS3SecretAccessKey], props[PropS3SessionToken],
		)), nil
	default:
		return nil, domain.ErrConfiguration("unknown %s %q", PropCredentialType, kind)
	}
}

type noCredentials struct{}

func (noCredentials) Refresh(context.Context) (iceberg.Properties, bool, error) {
	return nil, false, nil
}

// JWTConfig configures a JWTCredentials source.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Subject  string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// JWTCredentials mints HS256 bearer tokens for catalogs that authenticate
// with short-lived signed tokens. A new token is minted once less than a fifth
// of the current token's lifetime remains.
type JWTCredentials struct {
	cfg JWTConfig

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewJWTCredentials creates a JWT credential source.
func NewJWTCredentials(cfg JWTConfig) (*JWTCredentials, error) {
	if cfg.Secret == "" {
		return nil, domain.ErrConfiguration("%s is required for jwt credentials", PropJWTSecret)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultJWTTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTCredentials{cfg: cfg}, nil
}

// Refresh implements CredentialSource.
func (c *JWTCredentials) Refresh(_ context.Context) (iceberg.Properties, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	if c.token != "" && c.expiresAt.Sub(now) > c.cfg.TTL/5 {
		return iceberg.Properties{PropToken: c.token}, false, nil
	}

	claims := jwt.RegisteredClaims{
		Issuer:    c.cfg.Issuer,
		Subject:   c.cfg.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.TTL)),
		ID:        uuid.NewString(),
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.Secret))
	if err != nil {
		return nil, false, fmt.Errorf("sign catalog token: %w", err)
	}
	c.token = signed
	c.expiresAt = now.Add(c.cfg.TTL)
	return iceberg.Properties{PropToken: signed}, true, nil
}

// AWSCredentials publishes S3 FileIO credentials from an AWS credentials
// provider, cached until they expire.
type AWSCredentials struct {
	cache *aws.CredentialsCache

	mu   sync.Mutex
	last aws.Credentials
}

// NewAWSCredentials wraps provider in an aws.CredentialsCache.
func NewAWSCredentials(provider aws.CredentialsProvider) *AWSCredentials {
	return &AWSCredentials{cache: aws.NewCredentialsCache(provider)}
}

// Refresh implements CredentialSource.
func (c *AWSCredentials) Refresh(ctx context.Context) (iceberg.Properties, bool, error) {
	creds, err := c.cache.Retrieve(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("retrieve aws credentials: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := creds.AccessKeyID != c.last.AccessKeyID ||
		creds.SecretAccessKey != c.last.SecretAccessKey ||
		creds.SessionToken != c.last.SessionToken
	c.last = creds

	props := iceberg.Properties{
		PropS3AccessKeyID:     creds.AccessKeyID,
		PropS3SecretAccessKey: creds.SecretAccessKey,
	}
	if creds.SessionToken != "" {
		props[PropS3SessionToken] = creds.SessionToken
	}
	return props, changed, nil
}
