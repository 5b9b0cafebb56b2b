package spapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	signingService   = "execute-api"

	headerDate        = "x-amz-date"
	headerAccessToken = "x-amz-access-token"

	// Compact ISO-8601 basic format. The first 8 characters (the date) seed
	// the credential scope.
	timestampLayout = "20060102T150405Z"
)

// Signer produces signed marketplace API requests using the standard
// four-step HMAC signing scheme. Signing is a pure function of the request,
// the credentials and the clock; the clock is injectable for tests.
type Signer struct {
	accessKey string
	secretKey string
	region    string
	now       func() time.Time
}

// NewSigner rejects missing credentials before any signing is attempted.
func NewSigner(accessKey, secretKey, region string) (*Signer, error) {
	if strings.TrimSpace(accessKey) == "" || strings.TrimSpace(secretKey) == "" || strings.TrimSpace(region) == "" {
		return nil, ErrMissingCredentials
	}
	return &Signer{
		accessKey: accessKey,
		secretKey: secretKey,
		region:    region,
		now:       time.Now,
	}, nil
}

// Sign computes the request signature and sets the Authorization, date and
// access-token headers on req. The body must be the exact payload bytes the
// request will carry (nil for an empty body). A signed request is never
// reused: the timestamp and payload hash are part of the signature.
func (s *Signer) Sign(req *http.Request, body []byte, accessToken string) error {
	amzDate := s.now().UTC().Format(timestampLayout)
	dateStamp := amzDate[:8]

	req.Header.Set(headerDate, amzDate)
	if accessToken != "" {
		req.Header.Set(headerAccessToken, accessToken)
	}

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	signedHeaders, canonicalHeaders := canonicalizeHeaders(req, host)

	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	canonicalRequest := strings.Join([]string{
		req.Method,
		path,
		CanonicalQuery(req.URL.Query()),
		canonicalHeaders,
		signedHeaders,
		hashHex(body),
	}, "\n")

	scope := strings.Join([]string{dateStamp, s.region, signingService, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := s.deriveKey(dateStamp)
	signature := strings.ToUpper(hex.EncodeToString(hmacSHA256(signingKey, stringToSign)))

	req.Header.Set("Authorization",
		signingAlgorithm+" Credential="+s.accessKey+"/"+scope+
			", SignedHeaders="+signedHeaders+
			", Signature="+signature)
	return nil
}

// deriveKey chains four HMACs seeded with the secret key:
// date -> region -> service -> terminator.
func (s *Signer) deriveKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+s.secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, s.region)
	kService := hmacSHA256(kRegion, signingService)
	return hmacSHA256(kService, "aws4_request")
}

// CanonicalQuery renders query parameters sorted by key (values sorted
// within a key) with strict RFC 3986 percent-encoding. The remote service
// recomputes this byte sequence; any deviation is a signature mismatch.
func CanonicalQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(escapeRFC3986(k))
			b.WriteByte('=')
			b.WriteString(escapeRFC3986(v))
		}
	}
	return b.String()
}

// escapeRFC3986 percent-encodes everything outside the unreserved set,
// including ! * ' ( ) which the default encoder leaves alone.
func escapeRFC3986(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0xF])
	}
	return b.String()
}

func canonicalizeHeaders(req *http.Request, host string) (signedHeaders, canonicalHeaders string) {
	headers := map[string]string{"host": host}
	for _, name := range []string{headerDate, headerAccessToken} {
		if v := req.Header.Get(name); v != "" {
			headers[name] = v
		}
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var canonical strings.Builder
	for _, name := range names {
		canonical.WriteString(name)
		canonical.WriteByte(':')
		canonical.WriteString(strings.TrimSpace(headers[name]))
		canonical.WriteByte('\n')
	}
	return strings.Join(names, ";"), canonical.String()
}

// hashHex is the uppercase hex SHA-256 of the payload. An empty body hashes
// to the hash of "", never to a null digest.
func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
