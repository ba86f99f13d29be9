//go:build !windows

package modules

import (
	"context"
	"fmt"
	"os"
)

// etcAccounts reads the local account databases under root (normally "/").
type etcAccounts struct {
	root string
}

func DefaultAccountSource() AccountSource { return etcAccounts{root: "/"} }

func (s etcAccounts) Users(ctx context.Context) ([]UserAccount, error) {
	f, err := os.Open(s.root + "etc/passwd")
	if err != nil {
		return nil, fmt.Errorf("open passwd: %w", mapFsErr(err))
	}
	defer f.Close()
	users, err := ParsePasswd(f)
	if err != nil {
		return nil, err
	}
	// shadow hanya terbaca oleh root; tanpa itu status shell yang dipakai
	if sf, err := os.Open(s.root + "etc/shadow"); err == nil {
		defer sf.Close()
		if err := ApplyShadow(users, sf); err != nil {
			return nil, err
		}
	}
	return users, ctx.Err()
}

func (s etcAccounts) GroupMembers(ctx context.Context) (map[string][]string, error) {
	f, err := os.Open(s.root + "etc/group")
	if err != nil {
		return nil, fmt.Errorf("open group: %w", mapFsErr(err))
	}
	defer f.Close()
	groups, err := ParseGroup(f)
	if err != nil {
		return nil, err
	}
	return groups, ctx.Err()
}
