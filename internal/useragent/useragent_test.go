package useragent

import "testing"

func TestParseChromeOnWindows(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	p := Parse(ua)
	if p.Browser != "Chrome" {
		t.Errorf("browser = %q, want Chrome", p.Browser)
	}
	if p.OS != "Windows" {
		t.Errorf("os = %q, want Windows", p.OS)
	}
	if p.DeviceType != "Desktop" {
		t.Errorf("deviceType = %q, want Desktop", p.DeviceType)
	}
}

func TestParseEdgeTakesPrecedenceOverChrome(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0 Safari/537.36 Edg/124.0"
	p := Parse(ua)
	if p.Browser != "Edge" {
		t.Errorf("browser = %q, want Edge", p.Browser)
	}
}

func TestParseIPhoneIsMobileIOSSafari(t *testing.T) {
	ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148 Safari/604.1"
	p := Parse(ua)
	if p.OS != "iOS" {
		t.Errorf("os = %q, want iOS", p.OS)
	}
	if p.DeviceType != "Mobile" {
		t.Errorf("deviceType = %q, want Mobile", p.DeviceType)
	}
	if p.Browser != "Safari" {
		t.Errorf("browser = %q, want Safari", p.Browser)
	}
}

func TestParseIPadIsTablet(t *testing.T) {
	ua := "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Safari/604.1"
	p := Parse(ua)
	if p.DeviceType != "Tablet" {
		t.Errorf("deviceType = %q, want Tablet", p.DeviceType)
	}
}

func TestParseFirefoxOnLinux(t *testing.T) {
	ua := "Mozilla/5.0 (X11; Linux x86_64; rv:126.0) Gecko/20100101 Firefox/126.0"
	p := Parse(ua)
	if p.Browser != "Firefox" {
		t.Errorf("browser = %q, want Firefox", p.Browser)
	}
	if p.OS != "Linux" {
		t.Errorf("os = %q, want Linux", p.OS)
	}
}

func TestParseOperaTakesPrecedenceOverChrome(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 OPR/110.0"
	p := Parse(ua)
	if p.Browser != "Opera" {
		t.Errorf("browser = %q, want Opera", p.Browser)
	}
}

func TestParseAndroidMobileChrome(t *testing.T) {
	ua := "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Mobile Safari/537.36"
	p := Parse(ua)
	if p.OS != "Android" {
		t.Errorf("os = %q, want Android", p.OS)
	}
	if p.DeviceType != "Mobile" {
		t.Errorf("deviceType = %q, want Mobile", p.DeviceType)
	}
}
