//go:build windows

package report

import (
	"sort"
	"strconv"

	"github.com/yusufpapurcu/wmi"
)

// wmi class: Win32_OperatingSystem
type wmiOS struct {
	Caption        *string
	Version        *string
	BuildNumber    *string
	OSArchitecture *string
	ProductType    *uint32 // 1=Workstation, 2=Domain Controller, 3=Server
}

// wmi class: Win32_ComputerSystem
type wmiCS struct {
	Manufacturer *string
	Model        *string
	Domain       *string
	PartOfDomain *bool
}

// wmi class: Win32_QuickFixEngineering
type qfe struct {
	HotFixID    *string
	InstalledOn *string // format tergantung locale
}

func safeS(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func systemInfo() map[string]string {
	info := map[string]string{}
	var osList []wmiOS
	if err := wmi.Query("SELECT Caption, Version, BuildNumber, OSArchitecture, ProductType FROM Win32_OperatingSystem", &osList); err == nil && len(osList) > 0 {
		o := osList[0]
		info["os_name"] = safeS(o.Caption)
		info["os_version"] = safeS(o.Version)
		info["os_build"] = safeS(o.BuildNumber)
		info["os_architecture"] = safeS(o.OSArchitecture)
		if o.ProductType != nil {
			info["product_type"] = strconv.FormatUint(uint64(*o.ProductType), 10)
		}
	}
	var csList []wmiCS
	if err := wmi.Query("SELECT Manufacturer, Model, Domain, PartOfDomain FROM Win32_ComputerSystem", &csList); err == nil && len(csList) > 0 {
		c := csList[0]
		info["manufacturer"] = safeS(c.Manufacturer)
		info["model"] = safeS(c.Model)
		info["domain"] = safeS(c.Domain)
		if c.PartOfDomain != nil {
			info["part_of_domain"] = strconv.FormatBool(*c.PartOfDomain)
		}
	}
	var fixes []qfe
	if err := wmi.Query("SELECT HotFixID, InstalledOn FROM Win32_QuickFixEngineering", &fixes); err == nil {
		list := make([]Hotfix, 0, len(fixes))
		for _, f := range fixes {
			list = append(list, NewHotfix(safeS(f.HotFixID), safeS(f.InstalledOn)))
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].InstalledOn.After(list[j].InstalledOn) })
		info["hotfix_count"] = strconv.Itoa(len(list))
		if len(list) > 0 {
			info["latest_hotfix"] = list[0].ID
			info["latest_hotfix_date"] = list[0].Date()
		}
	}
	for k, v := range info {
		if v == "" {
			delete(info, k)
		}
	}
	return info
}
