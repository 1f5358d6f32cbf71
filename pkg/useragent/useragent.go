package useragent

import (
	"errors"
	"strings"
)

// ErrEmptyUserAgent is returned when the User-Agent header is missing.
var ErrEmptyUserAgent = errors.New("empty user agent")

// DeviceType classifies the client hardware category.
type DeviceType string

const (
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeTablet  DeviceType = "tablet"
	DeviceTypeBot     DeviceType = "bot"
	DeviceTypeUnknown DeviceType = "unknown"
)

// Info holds the attributes extracted from a User-Agent string.
// Empty fields mean the attribute could not be determined.
type Info struct {
	Source string

	Browser        string
	BrowserFamily  string
	BrowserVersion string
	BrowserEngine  string

	Platform        string
	PlatformFamily  string
	PlatformVersion string

	DeviceType   DeviceType
	DeviceFamily string
	DeviceModel  string

	Bot bool
}

// IsUnknown reports whether detection yielded no identifying attributes at
// all. Such devices are rejected when unknown devices are disallowed.
func (i Info) IsUnknown() bool {
	return i.Browser == "" && i.Platform == "" && i.DeviceModel == ""
}

var botMarkers = []string{
	"bot", "crawler", "spider", "slurp", "curl/", "wget/", "python-requests",
	"headlesschrome", "phantomjs", "facebookexternalhit", "whatsapp",
}

// browser detection order matters: Edge and Opera embed "Chrome", Chrome
// embeds "Safari".
var browsers = []struct {
	marker, name, family, engine string
}{
	{"edg/", "Edge", "Chromium", "Blink"},
	{"opr/", "Opera", "Chromium", "Blink"},
	{"samsungbrowser/", "Samsung Internet", "Chromium", "Blink"},
	{"firefox/", "Firefox", "Firefox", "Gecko"},
	{"chrome/", "Chrome", "Chromium", "Blink"},
	{"crios/", "Chrome", "Chromium", "WebKit"},
	{"safari/", "Safari", "Safari", "WebKit"},
}

var platforms = []struct {
	marker, name, family string
}{
	{"android", "Android", "Android"},
	{"iphone", "iOS", "Apple"},
	{"ipad", "iPadOS", "Apple"},
	{"windows nt", "Windows", "Windows"},
	{"mac os x", "macOS", "Apple"},
	{"cros", "ChromeOS", "Linux"},
	{"linux", "Linux", "Linux"},
}

// Detect parses a User-Agent string into device attributes using keyword
// matching. It is intentionally coarse: the goal is stable device identity
// signals, not exhaustive UA taxonomy. Detection never fails for a non-empty
// input; unrecognized agents yield DeviceTypeUnknown with empty fields.
func Detect(ua string) (Info, error) {
	if strings.TrimSpace(ua) == "" {
		return Info{}, ErrEmptyUserAgent
	}

	info := Info{Source: ua, DeviceType: DeviceTypeUnknown}
	lower := strings.ToLower(ua)

	for _, marker := range botMarkers {
		if strings.Contains(lower, marker) {
			info.Bot = true
			info.DeviceType = DeviceTypeBot
			break
		}
	}

	for _, b := range browsers {
		if idx := strings.Index(lower, b.marker); idx >= 0 {
			info.Browser = b.name
			info.BrowserFamily = b.family
			info.BrowserEngine = b.engine
			info.BrowserVersion = readVersion(lower[idx+len(b.marker):])
			break
		}
	}

	for _, p := range platforms {
		if idx := strings.Index(lower, p.marker); idx >= 0 {
			info.Platform = p.name
			info.PlatformFamily = p.family
			info.PlatformVersion = readVersion(lower[idx+len(p.marker):])
			break
		}
	}

	if !info.Bot {
		info.DeviceType, info.DeviceFamily, info.DeviceModel = classifyDevice(lower, info.Platform)
	}

	return info, nil
}

func classifyDevice(lower, platform string) (DeviceType, string, string) {
	switch {
	case strings.Contains(lower, "ipad"):
		return DeviceTypeTablet, "Apple", "iPad"
	case strings.Contains(lower, "iphone"):
		return DeviceTypeMobile, "Apple", "iPhone"
	case strings.Contains(lower, "android") && strings.Contains(lower, "mobile"):
		return DeviceTypeMobile, "Android", androidModel(lower)
	case strings.Contains(lower, "android"):
		return DeviceTypeTablet, "Android", androidModel(lower)
	case platform != "":
		return DeviceTypeDesktop, platform, ""
	default:
		return DeviceTypeUnknown, "", ""
	}
}

// androidModel extracts the device model from the parenthesized platform
// section, e.g. "(Linux; Android 14; Pixel 8)" yields "Pixel 8".
func androidModel(lower string) string {
	open := strings.Index(lower, "(")
	close := strings.Index(lower, ")")
	if open < 0 || close <= open {
		return ""
	}
	parts := strings.Split(lower[open+1:close], ";")
	last := strings.TrimSpace(parts[len(parts)-1])
	if last == "" || strings.HasPrefix(last, "android") || strings.HasPrefix(last, "linux") {
		return ""
	}
	return strings.TrimSuffix(last, " build")
}

// readVersion reads leading digits, dots and underscores after a marker;
// underscores are normalized to dots (macOS style "10_15_7").
func readVersion(s string) string {
	s = strings.TrimLeft(s, " ")
	end := 0
	for end < len(s) {
		c := s[end]
		if (c < '0' || c > '9') && c != '.' && c != '_' {
			break
		}
		end++
	}
	v := strings.ReplaceAll(s[:end], "_", ".")
	return strings.Trim(v, ".")
}
