package utils // package utils provides token and password helpers shared by handlers and middleware

import (
    "crypto/rand"
    "crypto/sha256"
    "encoding/hex"
    "errors"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// RefreshToken is an opaque random token handed to the client.  Only its
// SHA-256 hash is stored server side.
type RefreshToken struct {
    Raw string
    Exp time.Time
}

// AccessClaims is the payload of an access token.  The subject carries the
// user id as a decimal string.
type AccessClaims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// Identity is what a verified access token says about its bearer.
type Identity struct {
    UserID uint64
    Role   string
}

// ErrInvalidToken covers every way an access token can fail verification.
var ErrInvalidToken = errors.New("invalid access token")

// NewAccessToken signs an HS256 token for userID with the given role that
// expires after ttlMin minutes.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := AccessClaims{
        Role: role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(userID, 10),
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret (HS256 only, expiry
// enforced) and returns the bearer's identity.
func ParseAccessToken(secret, raw string) (Identity, error) {
    var claims AccessClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return Identity{}, ErrInvalidToken
    }
    uid, err := strconv.ParseUint(claims.Subject, 10, 64)
    if err != nil || uid == 0 {
        return Identity{}, ErrInvalidToken
    }
    return Identity{UserID: uid, Role: claims.Role}, nil
}

// NewRefreshToken returns 96 hex characters of randomness valid for ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48)
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw is the form refresh tokens are stored and looked up in.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
