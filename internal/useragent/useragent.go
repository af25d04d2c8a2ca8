// Package useragent parses the User-Agent header into the browser/OS/
// device-type triple the access log records (§4.K).
package useragent

import "regexp"

// Parsed is the §4.K enrichment triple.
type Parsed struct {
	Browser    string
	OS         string
	DeviceType string
}

// osPatterns matches iOS before macOS (iOS UAs contain "like Mac OS X") and
// Android before Linux (Android UAs contain "Linux").
var osPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"Windows", regexp.MustCompile(`Windows NT (10\.0|11\.0)`)},
	{"iOS", regexp.MustCompile(`iPhone|iPad|iPod`)},
	{"macOS", regexp.MustCompile(`Mac OS X`)},
	{"Android", regexp.MustCompile(`Android`)},
	{"Linux", regexp.MustCompile(`Linux`)},
}

// browserPatterns is ordered Edge → Opera → Chrome → Firefox → Safari.
// Edge and Opera both embed a Chrome/ token, and Chrome embeds a Safari/
// token, so the more specific engines must be matched first or they fall
// through to the wrong, broader match.
var browserPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"Edge", regexp.MustCompile(`Edg/`)},
	{"Opera", regexp.MustCompile(`OPR/|Opera`)},
	{"Chrome", regexp.MustCompile(`Chrome/`)},
	{"Firefox", regexp.MustCompile(`Firefox/`)},
	{"Safari", regexp.MustCompile(`Safari/`)},
}

var (
	mobileRe = regexp.MustCompile(`Mobile|Android|iPhone`)
	tabletRe = regexp.MustCompile(`Tablet|iPad`)
)

// Parse applies the §4.K regex table to a raw User-Agent string.
func Parse(ua string) Parsed {
	return Parsed{
		Browser:    matchBrowser(ua),
		OS:         matchOS(ua),
		DeviceType: matchDeviceType(ua),
	}
}

func matchOS(ua string) string {
	for _, p := range osPatterns {
		if p.re.MatchString(ua) {
			return p.name
		}
	}
	return "Unknown"
}

func matchBrowser(ua string) string {
	for _, p := range browserPatterns {
		if p.re.MatchString(ua) {
			return p.name
		}
	}
	return "Unknown"
}

func matchDeviceType(ua string) string {
	switch {
	case tabletRe.MatchString(ua):
		return "Tablet"
	case mobileRe.MatchString(ua):
		return "Mobile"
	default:
		return "Desktop"
	}
}
