package engine

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jacentio/weft/store"
)

// ErrUnauthorized is returned when credentials don't match an account.
var ErrUnauthorized = errors.New("weft: invalid credentials")

// ErrAccountExists is returned when provisioning an already-taken name.
var ErrAccountExists = errors.New("weft: account already exists")

// Accounts manages account provisioning and authentication. Passwords are
// generated server-side and stored hashed; the cleartext is returned once
// at generation time and never kept.
type Accounts struct {
	sub  store.Substrate
	cols *Collections
}

// NewAccounts creates an account manager.
func NewAccounts(sub store.Substrate, cols *Collections) *Accounts {
	return &Accounts{sub: sub, cols: cols}
}

// Get returns an account by name, or store.ErrNotFound.
func (a *Accounts) Get(ctx context.Context, name string) (*store.Account, error) {
	return a.sub.GetAccount(ctx, name)
}

// Create provisions a new account with a generated password, returning the
// account and the cleartext password for one-time delivery to the caller.
func (a *Accounts) Create(ctx context.Context, name string) (*store.Account, string, error) {
	password, err := generatePassword()
	if err != nil {
		return nil, "", err
	}
	account := &store.Account{
		Name:     name,
		UID:      uuid.NewString(),
		Password: hashPassword(password),
	}
	// The substrate enforces uniqueness so two concurrent provisioners
	// can't overwrite each other's credentials.
	if err := a.sub.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, "", ErrAccountExists
		}
		return nil, "", err
	}
	return account, password, nil
}

// ResetPassword generates and installs a fresh password, returning the
// cleartext.
func (a *Accounts) ResetPassword(ctx context.Context, name string) (string, error) {
	account, err := a.sub.GetAccount(ctx, name)
	if err != nil {
		return "", err
	}
	password, err := generatePassword()
	if err != nil {
		return "", err
	}
	account.Password = hashPassword(password)
	if err := a.sub.PutAccount(ctx, account); err != nil {
		return "", err
	}
	return password, nil
}

// Authenticate resolves an account from credentials. Returns
// ErrUnauthorized for a wrong password or unknown name, hiding which.
func (a *Accounts) Authenticate(ctx context.Context, name, password string) (*store.Account, error) {
	account, err := a.sub.GetAccount(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	hashed := hashPassword(password)
	if subtle.ConstantTimeCompare([]byte(hashed), []byte(account.Password)) != 1 {
		return nil, ErrUnauthorized
	}
	return account, nil
}

// Delete removes the account and cascades to all of its collections and
// records.
func (a *Accounts) Delete(ctx context.Context, name string) error {
	return a.cols.DeleteAccountCascade(ctx, name)
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func generatePassword() (string, error) {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
