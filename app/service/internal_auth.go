package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

var (
	ErrInvalidInternalAPIKey    = errors.New("invalid or expired internal api key")
	ErrInternalAccessDenied     = errors.New("internal caller is not allowed to access this service")
	ErrServiceHasActiveAPIKey   = errors.New("service already has an active api key")
	ErrServiceHasNoActiveAPIKey = errors.New("service has no active api key")
	ErrInvalidRegenerationTTL   = errors.New("invalid regeneration ttl")
	ErrServiceNameRequired      = errors.New("service name is required")
)

const (
	internalKeyPrefix   = "msint_"
	internalKeyLifetime = 100 * 365 * 24 * time.Hour
	minRegenerationTTL  = 5 * time.Minute
)

// InternalCaller is the service behind a validated internal API key.
type InternalCaller struct {
	ServiceName   string
	AllowedAccess []string
}

// InternalAuthService manages the API keys other services use for the gRPC
// API and the metrics endpoint. Only sha256 digests of keys are stored.
type InternalAuthService struct {
	keys repository.InternalAPIKeyStore
	// audience is the name callers must be allowed to access.
	audience string
	now      func() time.Time
}

func NewInternalAuthService(keys repository.InternalAPIKeyStore, audience string) *InternalAuthService {
	return &InternalAuthService{keys: keys, audience: audience, now: time.Now}
}

func (s *InternalAuthService) ValidateInternalAPIKey(ctx context.Context, apiKey string) (*InternalCaller, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrInvalidInternalAPIKey
	}

	key, err := s.keys.FindActiveByHash(ctx, hashInternalAPIKey(apiKey), s.now())
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrInvalidInternalAPIKey
	}

	return &InternalCaller{
		ServiceName:   key.ServiceName,
		AllowedAccess: key.AllowedAccess,
	}, nil
}

// Authorize validates apiKey and requires its owner to be allowed to call this
// service.
func (s *InternalAuthService) Authorize(ctx context.Context, apiKey string) (*InternalCaller, error) {
	caller, err := s.ValidateInternalAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if !containsString(caller.AllowedAccess, s.audience) {
		return nil, ErrInternalAccessDenied
	}
	return caller, nil
}

func (s *InternalAuthService) GenerateInternalAPIKey(ctx context.Context, serviceName string) (string, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return "", ErrServiceNameRequired
	}

	activeKeys, err := s.keys.FindActiveByServiceName(ctx, serviceName, s.now())
	if err != nil {
		return "", err
	}
	if len(activeKeys) > 0 {
		return "", ErrServiceHasActiveAPIKey
	}

	rawKey, keyHash, err := generateInternalAPIKey()
	if err != nil {
		return "", err
	}

	now := s.now()
	internalKey := &entity.InternalAPIKey{
		ServiceName:   serviceName,
		KeyHash:       keyHash,
		AllowedAccess: []string{},
		IsActive:      true,
		ExpiresAt:     now.Add(internalKeyLifetime),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err = s.keys.Create(ctx, internalKey); err != nil {
		return "", err
	}

	return rawKey, nil
}

func (s *InternalAuthService) AddInternalAllowedAccess(ctx context.Context, serviceName, allowedService string) error {
	serviceName = strings.TrimSpace(serviceName)
	allowedService = strings.TrimSpace(allowedService)
	if serviceName == "" {
		return ErrServiceNameRequired
	}
	if allowedService == "" {
		return errors.New("allowed service is required")
	}

	activeKeys, err := s.keys.FindActiveByServiceName(ctx, serviceName, s.now())
	if err != nil {
		return err
	}
	if len(activeKeys) == 0 {
		return ErrServiceHasNoActiveAPIKey
	}

	now := s.now()
	for _, key := range activeKeys {
		if containsString(key.AllowedAccess, allowedService) {
			continue
		}

		key.AllowedAccess = append(key.AllowedAccess, allowedService)
		sort.Strings(key.AllowedAccess)
		key.UpdatedAt = now
		if err = s.keys.Update(ctx, key); err != nil {
			return err
		}
	}

	return nil
}

func (s *InternalAuthService) DeactivateInternalAPIKeys(ctx context.Context, serviceName string) (int, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return 0, ErrServiceNameRequired
	}

	activeKeys, err := s.keys.FindActiveByServiceName(ctx, serviceName, s.now())
	if err != nil {
		return 0, err
	}
	if len(activeKeys) == 0 {
		return 0, ErrServiceHasNoActiveAPIKey
	}

	now := s.now()
	for _, key := range activeKeys {
		key.IsActive = false
		key.ExpiresAt = now
		key.UpdatedAt = now
		if err = s.keys.Update(ctx, key); err != nil {
			return 0, err
		}
	}

	return len(activeKeys), nil
}

// RegenerateInternalAPIKey issues a new key carrying the union of the active
// keys' allowed access. The old keys keep working for oldKeyTTL.
func (s *InternalAuthService) RegenerateInternalAPIKey(ctx context.Context, serviceName string, oldKeyTTL time.Duration) (string, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return "", ErrServiceNameRequired
	}
	if oldKeyTTL <= minRegenerationTTL {
		return "", ErrInvalidRegenerationTTL
	}

	activeKeys, err := s.keys.FindActiveByServiceName(ctx, serviceName, s.now())
	if err != nil {
		return "", err
	}
	if len(activeKeys) == 0 {
		return "", ErrServiceHasNoActiveAPIKey
	}

	allowedAccessSet := make(map[string]struct{})
	for _, key := range activeKeys {
		for _, allowed := range key.AllowedAccess {
			allowedAccessSet[allowed] = struct{}{}
		}
	}
	allowedAccess := make([]string, 0, len(allowedAccessSet))
	for allowed := range allowedAccessSet {
		allowedAccess = append(allowedAccess, allowed)
	}
	sort.Strings(allowedAccess)

	now := s.now()
	expireOldAt := now.Add(oldKeyTTL)
	for _, key := range activeKeys {
		if key.ExpiresAt.Before(expireOldAt) {
			continue
		}
		key.ExpiresAt = expireOldAt
		key.UpdatedAt = now
		if err = s.keys.Update(ctx, key); err != nil {
			return "", err
		}
	}

	rawKey, keyHash, err := generateInternalAPIKey()
	if err != nil {
		return "", err
	}

	newKey := &entity.InternalAPIKey{
		ServiceName:   serviceName,
		KeyHash:       keyHash,
		AllowedAccess: allowedAccess,
		IsActive:      true,
		ExpiresAt:     now.Add(internalKeyLifetime),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err = s.keys.Create(ctx, newKey); err != nil {
		return "", err
	}

	return rawKey, nil
}

func generateInternalAPIKey() (string, string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	rawKey := internalKeyPrefix + hex.EncodeToString(secret)
	return rawKey, hashInternalAPIKey(rawKey), nil
}

func hashInternalAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

func containsString(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}
