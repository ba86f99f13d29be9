package memory

import (
	"errors"
	"strings"
	"testing"
)

const sampleMaps = `55d0c8a00000-55d0c8a22000 r--p 00000000 08:02 173521                     /usr/bin/dbus-daemon
55d0c8a22000-55d0c8a52000 r-xp 00022000 08:02 173521                     /usr/bin/dbus-daemon
55d0c9b1e000-55d0c9b3f000 rw-p 00000000 00:00 0                          [heap]
7f1c2a000000-7f1c2a021000 rwxp 00000000 00:00 0
7f1c2b000000-7f1c2b001000 r-xp 00000000 00:01 4242                       /memfd:payload (deleted)
7f1c2c000000-7f1c2c010000 r-xp 00000000 08:02 9911                       /opt/My App/lib with space.so
7ffd5e9fe000-7ffd5ea00000 r-xp 00000000 00:00 0                          [vdso]
`

func TestParseMaps(t *testing.T) {
	regions, err := ParseMaps(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 7 {
		t.Fatalf("got %d regions", len(regions))
	}
	text := regions[1]
	if text.Protection != rx || text.AllocationType != AllocImage || text.Path != "/usr/bin/dbus-daemon" {
		t.Errorf("text = %+v", text)
	}
	anon := regions[3]
	if anon.Protection != rwx || anon.AllocationType != AllocPrivate || anon.Size != 0x21000 {
		t.Errorf("anon rwx = %+v", anon)
	}
	if regions[4].AllocationType != AllocPrivate {
		t.Errorf("memfd should be unbacked: %+v", regions[4])
	}
	if regions[5].Path != "/opt/My App/lib with space.so" || regions[5].AllocationType != AllocImage {
		t.Errorf("spaced path = %+v", regions[5])
	}
	if regions[6].AllocationType != AllocImage {
		t.Errorf("vdso = %+v", regions[6])
	}
	for i := 1; i < len(regions); i++ {
		if regions[i].Overlaps(regions[i-1]) || regions[i].BaseAddress < regions[i-1].BaseAddress {
			t.Errorf("regions %d and %d out of order", i-1, i)
		}
	}
}

func TestParseMapsBadRange(t *testing.T) {
	if _, err := ParseMaps(strings.NewReader("zzzz-0000 r-xp 0 0 0\n")); err == nil {
		t.Error("bad range accepted")
	}
	if _, err := ParseMaps(strings.NewReader("2000-1000 r-xp 0 0 0\n")); err == nil {
		t.Error("inverted range accepted")
	}
}

func TestQueryRegionsGaps(t *testing.T) {
	regions := []MemoryRegion{region(0x1000, 0x1000, rx, AllocImage), region(0x5000, 0x1000, rw, AllocPrivate)}
	r, err := queryRegions(regions, 0x1800, 0x10000)
	if err != nil || r.BaseAddress != 0x1000 {
		t.Errorf("inside = %+v, %v", r, err)
	}
	r, _ = queryRegions(regions, 0x2000, 0x10000)
	if r.State != StateFree || r.BaseAddress != 0x2000 || r.Size != 0x3000 {
		t.Errorf("gap = %+v", r)
	}
	r, _ = queryRegions(regions, 0x6000, 0x10000)
	if r.State != StateFree || r.End() != 0x10000 {
		t.Errorf("tail = %+v", r)
	}
	if _, err := queryRegions(regions, 0x10000, 0x10000); !errors.Is(err, errEndOfSpace) {
		t.Errorf("past end err = %v", err)
	}
}

func TestParseStatusCounters(t *testing.T) {
	status := "Name:\tbash\nVmRSS:\t    5120 kB\nRssAnon:\t    2048 kB\nThreads:\t1\n"
	c, err := ParseStatusCounters(strings.NewReader(status))
	if err != nil {
		t.Fatal(err)
	}
	if c.WorkingSet != 5120*1024 || c.PrivateBytes != 2048*1024 {
		t.Errorf("counters = %+v", c)
	}
	if _, err := ParseStatusCounters(strings.NewReader("VmRSS:\tlots kB\n")); err == nil {
		t.Error("bad value accepted")
	}
}
