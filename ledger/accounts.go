/*
accounts.go - Account registry

PURPOSE:
  Owns the hierarchical chart of accounts: creation (with code
  derivation under a parent), lookup, deactivation and deletion, and the
  invariants every other engine relies on:

  - Codes are globally unique.
  - A child's code extends its parent's code by one segment.
  - An account with children, posted activity or a non-zero balance
    cannot be deleted; one with a non-zero balance cannot be deactivated.
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Registry manages the chart of accounts.
type Registry struct {
	Store TxStore
}

func NewRegistry(store TxStore) *Registry {
	return &Registry{Store: store}
}

// CreateAccountInput carries the caller-supplied fields for a new
// account. Code is optional: when empty, the next sibling code under
// ParentID (or at the root level) is derived.
type CreateAccountInput struct {
	Code     string
	Name     string
	ParentID AccountID
	Type     AccountType
}

// CreateAccount registers a new account. The account starts active with
// a zero balance; its normal side follows its type.
func (r *Registry) CreateAccount(ctx context.Context, input CreateAccountInput) (*Account, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: account name required", ErrInvalidAccountCode)
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("invalid account type %q", input.Type)
	}

	var created *Account
	err := r.Store.WithTx(ctx, func(s Store) error {
		var parent *Account
		if input.ParentID != "" {
			var err error
			parent, err = s.GetAccount(ctx, input.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("%w: parent %s", ErrAccountNotFound, input.ParentID)
			}
			if parent.Type != input.Type {
				return fmt.Errorf("account type %q does not match parent type %q", input.Type, parent.Type)
			}
		}

		code, err := r.resolveCode(ctx, s, input, parent)
		if err != nil {
			return err
		}

		if existing, err := s.GetAccountByCode(ctx, code); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, code)
		}

		created = &Account{
			ID:         AccountID(uuid.NewString()),
			Code:       code,
			Name:       input.Name,
			ParentID:   input.ParentID,
			Type:       input.Type,
			NormalSide: input.Type.NormalSide(),
			IsActive:   true,
			Balance:    decimal.Zero,
			CreatedAt:  time.Now().UTC(),
		}
		return s.SaveAccount(ctx, *created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Registry) resolveCode(ctx context.Context, s Store, input CreateAccountInput, parent *Account) (AccountCode, error) {
	if input.Code != "" {
		code, err := ParseAccountCode(input.Code)
		if err != nil {
			return "", err
		}
		if parent != nil && !code.ChildOf(parent.Code) {
			return "", fmt.Errorf("%w: %s is not a child of parent code %s",
				ErrInvalidAccountCode, code, parent.Code)
		}
		if parent == nil && code.Depth() != 1 {
			return "", fmt.Errorf("%w: %s has segments but no parent", ErrInvalidAccountCode, code)
		}
		return code, nil
	}

	// Derive the next sibling code.
	var siblings []Account
	var err error
	if parent != nil {
		siblings, err = s.ListChildAccounts(ctx, parent.ID)
	} else {
		var all []Account
		all, err = s.ListAccounts(ctx)
		for _, a := range all {
			if a.ParentID == "" {
				siblings = append(siblings, a)
			}
		}
	}
	if err != nil {
		return "", err
	}

	codes := make([]AccountCode, len(siblings))
	for i, a := range siblings {
		codes[i] = a.Code
	}
	var parentCode AccountCode
	if parent != nil {
		parentCode = parent.Code
	}
	derived := parentCode.NextChild(codes)
	// A sibling segment already at the length cap derives one past it.
	if _, err := ParseAccountCode(derived.String()); err != nil {
		return "", err
	}
	return derived, nil
}

// GetAccount returns an account by id.
func (r *Registry) GetAccount(ctx context.Context, id AccountID) (*Account, error) {
	acc, err := r.Store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acc, nil
}

// ListAccounts returns the full chart ordered by code.
func (r *Registry) ListAccounts(ctx context.Context) ([]Account, error) {
	accounts, err := r.Store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Code.Compare(accounts[j].Code) < 0
	})
	return accounts, nil
}

// DeactivateAccount stops further postings to the account. Requires a
// zero balance so the books still roll up cleanly.
func (r *Registry) DeactivateAccount(ctx context.Context, id AccountID) error {
	return r.Store.WithTx(ctx, func(s Store) error {
		acc, err := s.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if acc == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		if !acc.Balance.IsZero() {
			return fmt.Errorf("%w: %s has balance %s", ErrAccountHasBalance, acc.Code, acc.Balance)
		}
		acc.IsActive = false
		return s.SaveAccount(ctx, *acc)
	})
}

// DeleteAccount removes an account that was never used: no children,
// no posted lines, zero balance.
func (r *Registry) DeleteAccount(ctx context.Context, id AccountID) error {
	return r.Store.WithTx(ctx, func(s Store) error {
		acc, err := s.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if acc == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}

		children, err := s.ListChildAccounts(ctx, id)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return fmt.Errorf("%w: %s has %d children", ErrAccountHasChildren, acc.Code, len(children))
		}

		used, err := s.AccountHasPostedLines(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: %s", ErrAccountHasActivity, acc.Code)
		}
		return s.DeleteAccount(ctx, id)
	})
}
