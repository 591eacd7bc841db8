package users

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNameEmpty      = errors.New("user name is empty")
	ErrUserEmailEmpty     = errors.New("user email is empty")
	ErrUserEmailInvalid   = errors.New("user email format is invalid")
	ErrUserPasswdEmpty    = errors.New("user password is empty")
	ErrUserPasswdMismatch = errors.New("user password confirmation does not match")
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	Balance      decimal.Decimal
	CreatedAt    time.Time
}

// CreateUser builds a new non-admin user with a zero balance.
func CreateUser(name, email, password, confirmPassword string) (*User, error) {
	if name == "" {
		return nil, ErrUserNameEmpty
	}

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	if password != confirmPassword {
		return nil, ErrUserPasswdMismatch
	}

	passwordHash, err := getPasswordHash(password)
	if err != nil {
		return nil, fmt.Errorf("getPasswordHash: %w", err)
	}

	return &User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now(),
	}, nil
}

func (u *User) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("bcrypt.CompareHashAndPassword: %w", err)
	}

	return nil
}

func getPasswordHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}

	return string(hash), nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return ErrUserEmailEmpty
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return ErrUserEmailInvalid
	}

	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrUserPasswdEmpty
	}

	return nil
}
