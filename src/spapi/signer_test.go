package spapi

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"
)

func fixedSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner("AKIDEXAMPLE", "wJalrXUtnFEMI", "us-east-1")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	s.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return s
}

func TestNewSignerRejectsBlankCredentials(t *testing.T) {
	cases := [][3]string{
		{"", "secret", "us-east-1"},
		{"key", "", "us-east-1"},
		{"key", "secret", ""},
		{"  ", "secret", "us-east-1"},
	}
	for _, c := range cases {
		if _, err := NewSigner(c[0], c[1], c[2]); err != ErrMissingCredentials {
			t.Fatalf("NewSigner(%q, %q, %q) error = %v, want ErrMissingCredentials", c[0], c[1], c[2], err)
		}
	}
}

func TestSignIsDeterministic(t *testing.T) {
	s := fixedSigner(t)

	build := func() *http.Request {
		req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/reports/2021-06-30/reports?reportTypes=X&pageSize=10", nil)
		return req
	}

	first := build()
	second := build()
	if err := s.Sign(first, nil, "token-abc"); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := s.Sign(second, nil, "token-abc"); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if first.Header.Get("Authorization") != second.Header.Get("Authorization") {
		t.Fatalf("identical requests produced different signatures:\n%s\n%s",
			first.Header.Get("Authorization"), second.Header.Get("Authorization"))
	}
}

func TestSignChangesWhenQueryChanges(t *testing.T) {
	s := fixedSigner(t)

	reqA, _ := http.NewRequest(http.MethodGet, "https://api.example.com/reports?pageSize=10", nil)
	reqB, _ := http.NewRequest(http.MethodGet, "https://api.example.com/reports?pageSize=20", nil)
	if err := s.Sign(reqA, nil, "tok"); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := s.Sign(reqB, nil, "tok"); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if reqA.Header.Get("Authorization") == reqB.Header.Get("Authorization") {
		t.Fatal("changing a query parameter did not change the signature")
	}
}

func TestSignChangesWhenBodyChanges(t *testing.T) {
	s := fixedSigner(t)

	reqA, _ := http.NewRequest(http.MethodPost, "https://api.example.com/reports", nil)
	reqB, _ := http.NewRequest(http.MethodPost, "https://api.example.com/reports", nil)
	if err := s.Sign(reqA, []byte(`{"a":1}`), "tok"); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := s.Sign(reqB, []byte(`{"a":2}`), "tok"); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if reqA.Header.Get("Authorization") == reqB.Header.Get("Authorization") {
		t.Fatal("changing the payload did not change the signature")
	}
}

func TestSignHeaderShape(t *testing.T) {
	s := fixedSigner(t)

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/orders/v0/orders", nil)
	if err := s.Sign(req, nil, "token-abc"); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if got := req.Header.Get("x-amz-date"); got != "20260315T103000Z" {
		t.Fatalf("x-amz-date = %q, want 20260315T103000Z", got)
	}
	if got := req.Header.Get("x-amz-access-token"); got != "token-abc" {
		t.Fatalf("x-amz-access-token = %q, want token-abc", got)
	}

	auth := req.Header.Get("Authorization")
	wantCredential := "Credential=AKIDEXAMPLE/20260315/us-east-1/execute-api/aws4_request"
	if !strings.Contains(auth, wantCredential) {
		t.Fatalf("Authorization missing credential scope:\n%s", auth)
	}
	if !strings.Contains(auth, "SignedHeaders=host;x-amz-access-token;x-amz-date") {
		t.Fatalf("Authorization missing signed headers list:\n%s", auth)
	}

	sigRe := regexp.MustCompile(`Signature=([0-9A-F]{64})$`)
	if !sigRe.MatchString(auth) {
		t.Fatalf("signature is not 64 uppercase hex characters:\n%s", auth)
	}
}

func TestSignOmitsAccessTokenHeaderWhenEmpty(t *testing.T) {
	s := fixedSigner(t)

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/reports", nil)
	if err := s.Sign(req, nil, ""); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if req.Header.Get("x-amz-access-token") != "" {
		t.Fatal("access token header set despite empty token")
	}
	if !strings.Contains(req.Header.Get("Authorization"), "SignedHeaders=host;x-amz-date") {
		t.Fatalf("signed headers should not include the token header:\n%s", req.Header.Get("Authorization"))
	}
}

func TestCanonicalQueryOrdering(t *testing.T) {
	v := url.Values{}
	v.Set("b", "2")
	v.Set("a", "1")
	if got := CanonicalQuery(v); got != "a=1&b=2" {
		t.Fatalf("CanonicalQuery = %q, want a=1&b=2", got)
	}
}

func TestCanonicalQueryRepeatedKeySortsValues(t *testing.T) {
	v := url.Values{"k": {"zeta", "alpha"}}
	if got := CanonicalQuery(v); got != "k=alpha&k=zeta" {
		t.Fatalf("CanonicalQuery = %q, want k=alpha&k=zeta", got)
	}
}

func TestCanonicalQueryEscaping(t *testing.T) {
	v := url.Values{}
	v.Set("q", "a b!c*d'(e)~f")
	want := "q=a%20b%21c%2Ad%27%28e%29~f"
	if got := CanonicalQuery(v); got != want {
		t.Fatalf("CanonicalQuery = %q, want %q", got, want)
	}
}

func TestHashHexUppercaseEmptyBody(t *testing.T) {
	// SHA-256 of the empty string, uppercased.
	want := "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855"
	if got := hashHex(nil); got != want {
		t.Fatalf("hashHex(nil) = %q, want %q", got, want)
	}
}
