// Package googleauth loads the OAuth client secret and the cached user
// token, and runs the copy-paste authorization flow when no token exists.
package googleauth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"sheetcal/internal/config"
	appLog "sheetcal/internal/log"
)

// ErrNoToken means the token file is missing; run the auth command first.
var ErrNoToken = errors.New("no cached google token")

// LoadConfig reads the OAuth client secret JSON downloaded from the cloud
// console.
func LoadConfig(credentialsFile string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return cfg, nil
}

// Client returns an HTTP client authorized with the cached token. Refreshed
// tokens are written back to tokenFile.
func Client(ctx context.Context, cfg *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := TokenFromFile(tokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, tokenFile)
	}
	if err != nil {
		return nil, err
	}
	src := &savingSource{
		base: cfg.TokenSource(ctx, tok),
		path: tokenFile,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// Authorize prints the consent URL to out, reads the pasted code from in,
// exchanges it and saves the token.
func Authorize(ctx context.Context, cfg *oauth2.Config, tokenFile string, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open this link, approve access and paste the code:\n%v\n", authURL)
	fmt.Fprint(out, "Code: ")

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("empty authorization code")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if err := SaveToken(tokenFile, tok); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Token saved to %s\n", tokenFile)
	return tok, nil
}

func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

func SaveToken(path string, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(path, b, ".sheetcal-token-*.tmp")
}

// savingSource persists the token whenever the access token changes.
type savingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil {
			appLog.Error("token refresh not saved", err, "path", s.path)
		}
	}
	return tok, nil
}
