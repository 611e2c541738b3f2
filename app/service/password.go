package service

import (
	"fmt"

	"github.com/vibast-solutions/ms-go-accounts/config"
	"golang.org/x/crypto/bcrypt"
)

func checkPasswordPolicy(policy config.PasswordPolicy, password string) error {
	if err := policy.Validate(password); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
