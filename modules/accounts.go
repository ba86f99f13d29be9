package modules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"corp/sysrecon/core"
	"corp/sysrecon/logger"
)

/*
   =========================
   Accounts: local users & privileged groups
   - Quick: enumerasi user saja
   - Full : + anggota grup (Administrators, Remote Desktop Users, sudo, wheel)
   =========================
*/

// UserAccount is one local account as reported by the platform source.
type UserAccount struct {
	Name                 string
	Domain               string
	SID                  string
	UID                  int
	Enabled              bool
	Admin                bool
	BuiltinAdmin         bool
	PasswordNeverExpires bool
	Groups               []string
}

func (u UserAccount) Display() string {
	if u.Domain == "" {
		return u.Name
	}
	return u.Domain + `\` + u.Name
}

// AccountSource enumerates local accounts. GroupMembers maps a group name
// to member account names.
type AccountSource interface {
	Users(ctx context.Context) ([]UserAccount, error)
	GroupMembers(ctx context.Context) (map[string][]string, error)
}

var adminGroups = map[string]bool{"administrators": true, "sudo": true, "wheel": true, "admin": true, "root": true}

// privilegedGroups are reported with their members in full mode.
var privilegedGroups = map[string]core.SecurityLevel{
	"administrators":       core.LevelLow,
	"remote desktop users": core.LevelMedium,
	"sudo":                 core.LevelLow,
	"wheel":                core.LevelLow,
	"admin":                core.LevelLow,
}

// AssessUserRisk: disabled accounts are Low; an enabled built-in
// administrator is Critical, any other enabled admin High, and a password
// that never expires Medium.
func AssessUserRisk(u UserAccount) (core.SecurityLevel, string) {
	if !u.Enabled {
		return core.LevelLow, "Account is disabled"
	}
	switch {
	case u.BuiltinAdmin:
		return core.LevelCritical, "Built-in administrator account is enabled"
	case u.Admin:
		return core.LevelHigh, "Enabled account with administrative rights"
	case u.PasswordNeverExpires:
		return core.LevelMedium, "Enabled account whose password never expires"
	}
	return core.LevelLow, "Enabled standard account"
}

type AccountsModule struct {
	src    AccountSource
	groups bool
	log    *logger.Logger
}

// NewAccountsModule: groups enables membership enumeration in full scans.
func NewAccountsModule(src AccountSource, groups bool, log *logger.Logger) *AccountsModule {
	if log == nil {
		log = logger.Nop()
	}
	return &AccountsModule{src: src, groups: groups, log: log}
}

func (m *AccountsModule) Kind() core.ModuleKind { return core.ModuleAccounts }

func (m *AccountsModule) Initialize(context.Context) error {
	if m.src == nil {
		return fmt.Errorf("%w: accounts module has no source", core.ErrConfigurationInvalid)
	}
	return nil
}

func (m *AccountsModule) Run(ctx context.Context, mode core.ScanMode, c *core.Collector) error {
	users, err := m.src.Users(ctx)
	if err != nil {
		return fmt.Errorf("enumerate users: %w", err)
	}

	var members map[string][]string
	if mode == core.ScanFull && m.groups {
		members, err = m.src.GroupMembers(ctx)
		if err != nil {
			// users sudah ada; grup cukup di-skip
			c.Skip("local groups", err)
		}
		markGroups(users, members)
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		level, desc := AssessUserRisk(u)
		f := core.NewFinding(u.Display(), desc, level)
		f.Category = "account"
		f.AddDetail("enabled", u.Enabled).AddDetail("admin", u.Admin)
		if u.SID != "" {
			f.AddDetail("sid", u.SID)
		}
		if u.PasswordNeverExpires {
			f.AddDetail("password_never_expires", true)
		}
		if len(u.Groups) > 0 {
			f.AddDetail("groups", strings.Join(u.Groups, ", "))
		}
		if level >= core.LevelHigh {
			f.Remediation = "Disable the account or remove it from administrative groups if it is not required"
		}
		c.Report(f)
	}

	for _, group := range sortedKeys(members) {
		level, ok := privilegedGroups[strings.ToLower(group)]
		if !ok || len(members[group]) == 0 {
			continue
		}
		f := core.NewFinding(group, fmt.Sprintf("Privileged group has %d member(s)", len(members[group])), level)
		f.Category = "group"
		f.AddDetail("members", strings.Join(members[group], ", "))
		c.Report(f)
	}
	m.log.Debug("accounts enumerated", "users", len(users), "groups", len(members))
	return nil
}

// markGroups fills Groups and Admin from the membership map.
func markGroups(users []UserAccount, members map[string][]string) {
	byName := map[string]int{}
	for i, u := range users {
		byName[strings.ToLower(u.Name)] = i
		byName[strings.ToLower(u.Display())] = i
	}
	for _, group := range sortedKeys(members) {
		for _, member := range members[group] {
			i, ok := byName[strings.ToLower(member)]
			if !ok {
				continue
			}
			users[i].Groups = append(users[i].Groups, group)
			if adminGroups[strings.ToLower(group)] {
				users[i].Admin = true
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

/* ---------- CIM path helpers ---------- */

// parseCIMPath mengurai CIM path Win32_Group / Win32_UserAccount:
// \\HOST\root\cimv2:Win32_Group.Domain="HOST",Name="Administrators"
func parseCIMPath(s string) (domain, name string) {
	return between(s, `Domain="`, `"`), between(s, `Name="`, `"`)
}

// between mengambil substring di antara prefix dan suffix pertama.
func between(s, prefix, suffix string) string {
	start := strings.Index(s, prefix)
	if start == -1 {
		return ""
	}
	start += len(prefix)
	end := strings.Index(s[start:], suffix)
	if end == -1 {
		return ""
	}
	return s[start : start+end]
}
