package modules

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

/*
   ===== Scheduled tasks =====
   Sumber utama `schtasks /query /fo LIST /v`; fallback file XML di
   System32\Tasks kalau schtasks diblokir.
*/

// ScheduledTask is one exec action of a task.
type ScheduledTask struct {
	Name    string
	Command string
	Source  string // schtasks | xml
}

// ParseSchtasksList parses `schtasks /query /fo LIST /v`. Blocks are
// separated by blank lines; the action is "Task To Run" (or "Actions" on
// newer builds). Duplicate name/command pairs (one block per trigger)
// are folded. COM handler actions have no command and are dropped.
func ParseSchtasksList(r io.Reader) []ScheduledTask {
	var out []ScheduledTask
	seen := map[string]bool{}
	var name, action string
	commit := func() {
		action = strings.TrimSpace(action)
		if action != "" && !strings.EqualFold(action, "COM handler") {
			key := strings.ToLower(name + "\x00" + action)
			if !seen[key] {
				seen[key] = true
				out = append(out, ScheduledTask{Name: name, Command: action, Source: "schtasks"})
			}
		}
		name, action = "", ""
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			commit()
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "taskname":
			// blok baru tanpa baris kosong di antaranya
			if name != "" {
				commit()
			}
			name = strings.TrimSpace(val)
		case "task to run", "actions":
			action = strings.TrimSpace(val)
		}
	}
	commit()
	return out
}

type taskXML struct {
	XMLName xml.Name `xml:"Task"`
	Actions struct {
		Exec []struct {
			Command   string `xml:"Command"`
			Arguments string `xml:"Arguments"`
		} `xml:"Exec"`
	} `xml:"Actions"`
}

// ParseTaskXML reads the exec actions of one task definition file. Task
// files are UTF-16 with a BOM on disk; UTF-8 is accepted too.
func ParseTaskXML(name string, data []byte) []ScheduledTask {
	var t taskXML
	text := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	dec := xml.NewDecoder(text)
	// header tetap menyebut UTF-16 walau stream sudah UTF-8
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }
	if err := dec.Decode(&t); err != nil {
		return nil
	}
	var out []ScheduledTask
	for _, e := range t.Actions.Exec {
		cmd := strings.TrimSpace(e.Command)
		if cmd == "" {
			continue
		}
		if args := strings.TrimSpace(e.Arguments); args != "" {
			cmd += " " + args
		}
		out = append(out, ScheduledTask{Name: name, Command: cmd, Source: "xml"})
	}
	return out
}
