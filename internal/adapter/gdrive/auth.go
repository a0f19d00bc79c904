package gdrive

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

const (
	// DefaultTokenFile is the token file name inside the snapdiff config dir
	DefaultTokenFile = "gdrive-token.json"
	// AuthTimeout bounds the interactive authorization exchange
	AuthTimeout = 5 * time.Minute
)

// ErrNoToken is returned when no usable token is stored
var ErrNoToken = errors.New("no Google Drive token, run 'snapdiff auth gdrive'")

// DefaultTokenPath returns the token location used when none is configured
func DefaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultTokenFile
	}
	return filepath.Join(dir, "snapdiff", DefaultTokenFile)
}

// Authenticator obtains and stores OAuth2 tokens with read-only metadata
// scope; snapshots never need file contents.
type Authenticator struct {
	config    *oauth2.Config
	tokenPath string
}

// NewAuthenticator creates an authenticator; an empty tokenPath selects
// DefaultTokenPath
func NewAuthenticator(clientID, clientSecret, tokenPath string) *Authenticator {
	if tokenPath == "" {
		tokenPath = DefaultTokenPath()
	}
	return &Authenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{drive.DriveMetadataReadonlyScope},
			Endpoint:     google.Endpoint,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		},
		tokenPath: tokenPath,
	}
}

// TokenPath returns where the token is stored
func (a *Authenticator) TokenPath() string {
	return a.tokenPath
}

// Config returns the OAuth2 configuration
func (a *Authenticator) Config() *oauth2.Config {
	return a.config
}

// LoadToken returns the stored token, refreshing and re-storing it when
// it has expired
func (a *Authenticator) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := a.readToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
	}
	if token.Valid() {
		return token, nil
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token expired", ErrNoToken)
	}
	return a.TokenSource(ctx, token).Token()
}

// TokenSource returns a source that refreshes token as needed and writes
// every new token back to the token file
func (a *Authenticator) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(token, &persistingSource{
		base: a.config.TokenSource(ctx, token),
		save: a.writeToken,
		last: token.AccessToken,
	})
}

// HTTPClient returns a client authorized with the stored token
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	token, err := a.LoadToken(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, a.TokenSource(ctx, token)), nil
}

// Authenticate runs the manual authorization code flow: it prints the
// consent URL to out, reads the code from in and stores the token.
func (a *Authenticator) Authenticate(ctx context.Context, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, AuthTimeout)
	defer cancel()

	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	url := a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open this URL and allow snapdiff to read your Drive file list:\n\n  %s\n\n", url)
	fmt.Fprint(out, "Authorization code: ")

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := a.writeToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return token, nil
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (a *Authenticator) readToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	return &token, nil
}

// writeToken stores token with owner-only permissions via temp file and rename
func (a *Authenticator) writeToken(token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}

	tmp := a.tokenPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, a.tokenPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// persistingSource saves each token that differs from the previous one
type persistingSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token) error

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		if err := p.save(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		p.last = token.AccessToken
	}
	return token, nil
}
