package modules

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

/* ===== /etc/passwd, /etc/shadow, /etc/group ===== */

var noLoginShells = map[string]bool{
	"/usr/sbin/nologin": true, "/sbin/nologin": true, "/bin/false": true, "/usr/bin/false": true, "/bin/sync": true,
}

// shadowEntry is the part of /etc/shadow the risk rules need.
type shadowEntry struct {
	locked       bool
	neverExpires bool
}

// ParsePasswd reads /etc/passwd. An account is enabled when it has a login
// shell; ApplyShadow refines that with the password state.
func ParsePasswd(r io.Reader) ([]UserAccount, error) {
	var out []UserAccount
	err := eachLine(r, func(fields []string) {
		if len(fields) < 7 {
			return
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil {
			return
		}
		u := UserAccount{
			Name:    fields[0],
			UID:     uid,
			Enabled: !noLoginShells[fields[6]] && fields[6] != "",
			Admin:   uid == 0,
		}
		u.BuiltinAdmin = uid == 0 && u.Name == "root"
		out = append(out, u)
	})
	return out, err
}

// parseShadow: field 2 diawali "!" atau "*" berarti terkunci; field 5
// (max days) kosong atau >= 99999 berarti tidak pernah expire.
func parseShadow(r io.Reader) (map[string]shadowEntry, error) {
	out := map[string]shadowEntry{}
	err := eachLine(r, func(fields []string) {
		if len(fields) < 5 {
			return
		}
		hash := fields[1]
		e := shadowEntry{locked: strings.HasPrefix(hash, "!") || strings.HasPrefix(hash, "*")}
		if !e.locked {
			days, err := strconv.Atoi(fields[4])
			e.neverExpires = fields[4] == "" || (err == nil && days >= 99999)
		}
		out[fields[0]] = e
	})
	return out, err
}

// ApplyShadow disables accounts whose password is locked and sets
// PasswordNeverExpires.
func ApplyShadow(users []UserAccount, r io.Reader) error {
	shadow, err := parseShadow(r)
	if err != nil {
		return err
	}
	for i := range users {
		e, ok := shadow[users[i].Name]
		if !ok {
			continue
		}
		if e.locked {
			users[i].Enabled = false
		}
		users[i].PasswordNeverExpires = e.neverExpires
	}
	return nil
}

// ParseGroup reads /etc/group into group → members.
func ParseGroup(r io.Reader) (map[string][]string, error) {
	out := map[string][]string{}
	err := eachLine(r, func(fields []string) {
		if len(fields) < 4 {
			return
		}
		var members []string
		for _, m := range strings.Split(fields[3], ",") {
			if m = strings.TrimSpace(m); m != "" {
				members = append(members, m)
			}
		}
		out[fields[0]] = members
	})
	return out, err
}

func eachLine(r io.Reader, fn func(fields []string)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(strings.Split(line, ":"))
	}
	return sc.Err()
}
