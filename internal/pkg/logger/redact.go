package logger

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+[0-9][0-9 -]{7,}[0-9]`)
)

// redactPIIValue masks contact data. Keys naming an email or phone field are
// masked whole; other values have embedded addresses and numbers masked.
func redactPIIValue(key, val string) string {
	switch k := strings.ToLower(key); {
	case strings.Contains(k, "email"):
		return RedactEmail(val)
	case strings.Contains(k, "phone"), strings.Contains(k, "mobile"):
		return RedactPhone(val)
	}
	if strings.ContainsRune(val, '@') {
		val = emailPattern.ReplaceAllStringFunc(val, RedactEmail)
	}
	if strings.ContainsRune(val, '+') {
		val = phonePattern.ReplaceAllStringFunc(val, RedactPhone)
	}
	return val
}

// RedactEmail keeps the first two characters of the local part and the
// domain: "john.doe@example.com" becomes "jo***@example.com". Local parts of
// two characters or fewer are masked entirely.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

// RedactPhone keeps only the last four digits: "+971 50 123 4567" becomes
// "***4567".
func RedactPhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) <= 4 {
		return "***"
	}
	return "***" + d[len(d)-4:]
}
