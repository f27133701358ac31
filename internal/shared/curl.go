// Utilities for turning a browser "Copy as cURL" command into a cookies file the extractor accepts.
package shared

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	headerRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	cookieRegex = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
	urlRegex    = regexp.MustCompile(`https?://[^\s'"]+`)
)

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*CurlHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts the request URL, headers and cookie.
//
// A cookie passed with -b wins over a Cookie header.
func ParseCurlCommand(data []byte) (*CurlHeaders, error) {
	curlCmd := string(data)
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	headers := make(map[string]string)
	var headerCookie string

	for _, match := range headerRegex.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		headers[key] = value
	}

	cookie := headerCookie
	if m := cookieRegex.FindStringSubmatch(curlCmd); m != nil {
		cookie = firstGroup(m)
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("no headers found in curl command")
	}

	return &CurlHeaders{
		URL:     urlRegex.FindString(curlCmd),
		Headers: headers,
		Cookie:  cookie,
	}, nil
}

// Cookies splits the cookie string into name/value pairs, sorted by name.
func (c *CurlHeaders) Cookies() [][2]string {
	var pairs [][2]string
	for _, part := range strings.Split(c.Cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		pairs = append(pairs, [2]string{name, value})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}

// CookieDomain returns the cookie domain for the request URL, e.g. ".youtube.com" for
// "https://music.youtube.com/...".
func (c *CurlHeaders) CookieDomain() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: curl command has no request url", ErrInvalidInput)
	}

	labels := strings.Split(u.Hostname(), ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return "." + strings.Join(labels, "."), nil
}

// ToNetscapeCookies renders the cookies in the Netscape cookies.txt format read by the extractor's --cookies flag.
func (c *CurlHeaders) ToNetscapeCookies(expires time.Time) (string, error) {
	domain, err := c.CookieDomain()
	if err != nil {
		return "", err
	}

	pairs := c.Cookies()
	if len(pairs) == 0 {
		return "", fmt.Errorf("%w: curl command carries no cookies", ErrInvalidInput)
	}

	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "%s\tTRUE\t/\tTRUE\t%d\t%s\t%s\n", domain, expires.Unix(), p[0], p[1])
	}
	return b.String(), nil
}

// WriteCookiesFile converts the curl command in src into a cookies file at dst.
func WriteCookiesFile(src, dst string) (int, error) {
	parsed, err := ParseCurlFile(src)
	if err != nil {
		return 0, err
	}

	content, err := parsed.ToNetscapeCookies(time.Now().AddDate(1, 0, 0))
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(dst, []byte(content), 0o600); err != nil {
		return 0, fmt.Errorf("failed to write cookies file: %w", err)
	}
	return len(parsed.Cookies()), nil
}

func firstGroup(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}
