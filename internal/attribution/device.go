package attribution

import (
	"strings"
	"sync"

	"github.com/ua-parser/uap-go/uaparser"
)

const unknownVendor = "Unknown"

// DeviceInfo is the coarse device signature derived from a User-Agent.
type DeviceInfo struct {
	Vendor    string
	Model     string
	OSName    string
	OSVersion string
}

var parser = sync.OnceValue(uaparser.NewFromSaved)

// ParseUserAgent extracts vendor, model and OS from a User-Agent string.
// Families the regex database cannot classify come back empty.
func ParseUserAgent(ua string) DeviceInfo {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return DeviceInfo{}
	}
	client := parser().Parse(ua)

	var info DeviceInfo
	if client.Device != nil {
		info.Vendor = known(client.Device.Brand)
		info.Model = known(client.Device.Model)
	}
	if client.Os != nil {
		info.OSName = known(client.Os.Family)
		if info.OSName != "" {
			info.OSVersion = client.Os.ToVersionString()
		}
	}
	return info
}

// DeviceName concatenates vendor, model, OS name and OS version. A missing
// vendor reads "Unknown"; every other missing part is left out.
func DeviceName(info DeviceInfo) string {
	vendor := strings.TrimSpace(info.Vendor)
	if vendor == "" {
		vendor = unknownVendor
	}
	return vendor +
		strings.TrimSpace(info.Model) +
		strings.TrimSpace(info.OSName) +
		strings.TrimSpace(info.OSVersion)
}

func known(s string) string {
	s = strings.TrimSpace(s)
	if s == "Other" || s == "Generic" {
		return ""
	}
	return s
}
