package api

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"prism-board/config"
)

const defaultJWKSCacheTTL = 15 * time.Minute

var errInvalidToken = errors.New("invalid token")

// Principal is the authenticated caller. Token is forwarded to the task API.
type Principal struct {
	UserID string
	Token  string
}

type Authenticator interface {
	Authenticate(header string) (Principal, error)
}

// Auth verifies bearer tokens. Tokens are never issued here.
type Auth struct {
	Mode     string
	JWKS     *keyfunc.JWKS
	Audience string
	Issuer   string
	Secret   []byte

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates an Auth for one of the config.Auth* modes.
func NewAuth(mode string, jwks *keyfunc.JWKS, audience, issuer string, secret []byte) (*Auth, error) {
	a := &Auth{Mode: mode, JWKS: jwks, Audience: audience, Issuer: issuer, Secret: secret, keyCacheTTL: defaultJWKSCacheTTL}
	switch mode {
	case config.AuthJWKS:
		if jwks == nil {
			return nil, errors.New("jwks auth requires a key set")
		}
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	case config.AuthHS256:
		if len(secret) == 0 {
			return nil, errors.New("hs256 auth requires a shared secret")
		}
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	case config.AuthPassthrough:
		a.parser = jwt.NewParser()
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", mode)
	}
	return a, nil
}

func (a *Auth) Authenticate(header string) (Principal, error) {
	token, err := bearerTokenFromString(header)
	if err != nil {
		return Principal{}, err
	}
	sub, err := a.UserIDFromBearer(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: sub, Token: token}, nil
}

// UserIDFromBearer returns the sub claim of a compact JWT.
func (a *Auth) UserIDFromBearer(token string) (string, error) {
	claims := jwt.MapClaims{}
	var err error
	switch a.Mode {
	case config.AuthPassthrough:
		_, _, err = a.parser.ParseUnverified(token, claims)
	case config.AuthHS256:
		_, err = a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return a.Secret, nil
		})
	default:
		_, err = a.parser.ParseWithClaims(token, claims, a.keyForToken)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, a.Mode != config.AuthPassthrough) {
		return "", fmt.Errorf("%w: token expired", errInvalidToken)
	}
	if a.Mode != config.AuthPassthrough {
		if a.Audience != "" && !claims.VerifyAudience(a.Audience, true) {
			return "", fmt.Errorf("%w: invalid audience", errInvalidToken)
		}
		if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, true) {
			return "", fmt.Errorf("%w: invalid issuer", errInvalidToken)
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing sub", errInvalidToken)
	}
	return sub, nil
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
