package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const PurposeVerifyEmail = "verify-email"

var ErrInvalidLink = errors.New("invalid or expired signed link")

type linkClaims struct {
	Fingerprint string `json:"fp"`
	Purpose     string `json:"purpose"`
	jwt.RegisteredClaims
}

// LinkSigner builds self-verifying verification links. Nothing is stored: the
// signature covers the account id, the email fingerprint and the expiry.
type LinkSigner struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

func NewLinkSigner(secret, baseURL string) *LinkSigner {
	return &LinkSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Fingerprint binds a link to the email it was issued for.
func Fingerprint(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// MatchFingerprint compares a supplied fingerprint with the one derived from
// the account's current email in constant time.
func MatchFingerprint(email, supplied string) bool {
	return equalHash(Fingerprint(email), supplied)
}

func (s *LinkSigner) Issue(accountID uint64, fingerprint, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := linkClaims{
		Fingerprint: fingerprint,
		Purpose:     purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signature, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	link := fmt.Sprintf("%s/email/verify/%d/%s?expires=%d&signature=%s",
		s.baseURL, accountID, url.PathEscape(fingerprint), expiresAt.Unix(), url.QueryEscape(signature))
	return link, expiresAt, nil
}

// Validate checks signature, expiry and that the signed claims match the
// account id and fingerprint taken from the link path. The expires query
// parameter is informational; the signed exp claim is authoritative.
func (s *LinkSigner) Validate(accountID uint64, fingerprint, purpose, signature string) error {
	if signature == "" {
		return ErrInvalidLink
	}

	claims := &linkClaims{}
	_, err := jwt.ParseWithClaims(signature, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(strconv.FormatUint(accountID, 10)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return ErrInvalidLink
	}
	if claims.Purpose != purpose || !equalHash(claims.Fingerprint, fingerprint) {
		return ErrInvalidLink
	}
	return nil
}
