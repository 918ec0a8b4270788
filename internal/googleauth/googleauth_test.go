package googleauth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := TokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
}

func TestClientWithoutToken(t *testing.T) {
	_, err := Client(context.Background(), &oauth2.Config{}, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	body := `{"installed":{"client_id":"cid","client_secret":"sec","auth_uri":"https://accounts.example/auth","token_uri":"https://accounts.example/token","redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path, "scope-a", "scope-b")
	require.NoError(t, err)
	assert.Equal(t, "cid", cfg.ClientID)
	assert.Equal(t, []string{"scope-a", "scope-b"}, cfg.Scopes)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "the-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"acc","refresh_token":"ref","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cfg := &oauth2.Config{
		ClientID: "cid",
		Endpoint: oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
	}
	path := filepath.Join(t.TempDir(), "token.json")
	var out bytes.Buffer

	tok, err := Authorize(context.Background(), cfg, path, strings.NewReader("  the-code \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "acc", tok.AccessToken)
	assert.Contains(t, out.String(), srv.URL+"/auth")

	saved, err := TokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ref", saved.RefreshToken)

	_, err = Authorize(context.Background(), cfg, path, strings.NewReader("\n"), &out)
	assert.ErrorContains(t, err, "empty authorization code")
}

type seqSource struct{ tokens []string }

func (s *seqSource) Token() (*oauth2.Token, error) {
	tok := &oauth2.Token{AccessToken: s.tokens[0]}
	if len(s.tokens) > 1 {
		s.tokens = s.tokens[1:]
	}
	return tok, nil
}

func TestSavingSourceWritesOnRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	src := &savingSource{base: &seqSource{tokens: []string{"old", "new"}}, path: path, last: "old"}

	_, err := src.Token()
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "unchanged token is not rewritten")

	_, err = src.Token()
	require.NoError(t, err)
	tok, err := TokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
}
