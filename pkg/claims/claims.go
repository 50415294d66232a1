package claims

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crewsync/crewsync/pkg/bridge"
	"github.com/crewsync/crewsync/pkg/roles"
)

// Issuer identifies tokens minted by this engine.
const Issuer = "crewsync"

// ErrInvalidToken is returned for tokens that fail signature, issuer, or
// expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// CrewClaims is the custom-claims payload embedded in identity tokens.
// It carries only resolved values.
type CrewClaims struct {
	OrganizationID      string   `json:"organizationId"`
	ProjectID           string   `json:"projectId,omitempty"`
	TeamMemberRole      string   `json:"teamMemberRole"`
	DashboardRole       string   `json:"dashboardRole"`
	TeamMemberHierarchy int      `json:"teamMemberHierarchy"`
	DashboardHierarchy  int      `json:"dashboardHierarchy"`
	EffectiveHierarchy  int      `json:"effectiveHierarchy"`
	Permissions         []string `json:"permissions"`
	Tier                string   `json:"tier"`
	jwt.RegisteredClaims
}

// FromMapping builds the claims payload for a user's resolved mapping.
func FromMapping(userID, organizationID, projectID string, m *bridge.Mapping) *CrewClaims {
	return &CrewClaims{
		OrganizationID:      organizationID,
		ProjectID:           projectID,
		TeamMemberRole:      string(m.OrgRole),
		DashboardRole:       m.ProjectRole.Name,
		TeamMemberHierarchy: m.OrgRole.Hierarchy(),
		DashboardHierarchy:  m.ProjectRole.Hierarchy,
		EffectiveHierarchy:  m.EffectiveHierarchy,
		Permissions:         m.Permissions.EnabledNames(),
		Tier:                string(m.Tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
			Issuer:  Issuer,
		},
	}
}

// HasPermission reports whether the named permission is present in the
// claims. Callers branch on this or on EffectiveHierarchy, never on role
// name equality.
func (c *CrewClaims) HasPermission(name string) bool {
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// Tokener signs and verifies claim tokens with a shared HMAC secret.
type Tokener struct {
	secret []byte
	ttl    time.Duration
}

// NewTokener creates a Tokener. ttl bounds the token lifetime; zero means
// one hour.
func NewTokener(secret []byte, ttl time.Duration) (*Tokener, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokener{secret: secret, ttl: ttl}, nil
}

// Issue signs the claims and returns the compact token string.
func (t *Tokener) Issue(c *CrewClaims) (string, error) {
	now := time.Now()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	if c.Issuer == "" {
		c.Issuer = Issuer
	}
	if err := c.validateResolved(); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a compact token string and returns its claims.
func (t *Tokener) Parse(tokenStr string) (*CrewClaims, error) {
	var c CrewClaims
	token, err := jwt.ParseWithClaims(tokenStr, &c,
		func(tok *jwt.Token) (any, error) {
			if tok.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

// validateResolved sanity-checks the resolved values before signing. A
// failure here is a caller bug, not a user error.
func (c *CrewClaims) validateResolved() error {
	if c.Subject == "" {
		return fmt.Errorf("claims missing subject")
	}
	if c.OrganizationID == "" {
		return fmt.Errorf("claims missing organization id")
	}
	if !roles.OrgRole(c.TeamMemberRole).Valid() {
		return &roles.UnknownRoleError{Name: c.TeamMemberRole, Catalog: "organization"}
	}
	if _, err := roles.ProjectRoleByName(c.DashboardRole); err != nil {
		return err
	}
	if !roles.Tier(c.Tier).Valid() {
		return &roles.ConfigurationError{Detail: fmt.Sprintf("unknown tier %q", c.Tier)}
	}
	want := c.TeamMemberHierarchy
	if c.DashboardHierarchy > want {
		want = c.DashboardHierarchy
	}
	if c.EffectiveHierarchy != want {
		return fmt.Errorf("effective hierarchy %d does not equal max of role hierarchies %d",
			c.EffectiveHierarchy, want)
	}
	return nil
}
