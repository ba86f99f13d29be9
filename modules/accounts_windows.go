//go:build windows

package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/yusufpapurcu/wmi"
)

// model Win32_UserAccount (local users)
type win32UserAccount struct {
	Name            *string
	Domain          *string
	Disabled        *bool
	LocalAccount    *bool
	PasswordExpires *bool
	SID             *string
}

// model Win32_GroupUser (association)
type win32GroupUser struct {
	GroupComponent string
	PartComponent  string
}

type wmiAccounts struct{}

// DefaultAccountSource queries WMI root\cimv2.
func DefaultAccountSource() AccountSource { return wmiAccounts{} }

func (wmiAccounts) Users(ctx context.Context) ([]UserAccount, error) {
	var rows []win32UserAccount
	q := `SELECT Name,Domain,Disabled,LocalAccount,PasswordExpires,SID FROM Win32_UserAccount WHERE LocalAccount = TRUE`
	if err := wmi.QueryNamespace(q, &rows, `root\cimv2`); err != nil {
		return nil, fmt.Errorf("wmi Win32_UserAccount: %w", err)
	}
	out := make([]UserAccount, 0, len(rows))
	for _, r := range rows {
		sid := safeS(r.SID)
		out = append(out, UserAccount{
			Name:    safeS(r.Name),
			Domain:  safeS(r.Domain),
			SID:     sid,
			UID:     -1,
			Enabled: !safeB(r.Disabled),
			// RID 500 = built-in Administrator, nama bisa dilokalisasi
			BuiltinAdmin:         strings.HasSuffix(sid, "-500"),
			PasswordNeverExpires: r.PasswordExpires != nil && !*r.PasswordExpires,
		})
	}
	return out, ctx.Err()
}

func (wmiAccounts) GroupMembers(ctx context.Context) (map[string][]string, error) {
	var links []win32GroupUser
	if err := wmi.QueryNamespace(`SELECT GroupComponent, PartComponent FROM Win32_GroupUser`, &links, `root\cimv2`); err != nil {
		return nil, fmt.Errorf("wmi Win32_GroupUser: %w", err)
	}
	out := map[string][]string{}
	for _, l := range links {
		_, group := parseCIMPath(l.GroupComponent)
		uDomain, uName := parseCIMPath(l.PartComponent)
		if group == "" || uName == "" {
			continue
		}
		display := uName
		if uDomain != "" {
			display = uDomain + `\` + uName
		}
		out[group] = append(out[group], display)
	}
	return out, ctx.Err()
}

// safeS: deref *string, "" jika nil
func safeS(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// safeB: deref *bool, false jika nil
func safeB(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}
