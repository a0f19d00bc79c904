package domain

// TransportType identifies the storage backend a source is scanned through
type TransportType string

const (
	TransportLocal  TransportType = "local"
	TransportGDrive TransportType = "gdrive"
)

// IsValid checks if the transport type is a known value
func (t TransportType) IsValid() bool {
	switch t {
	case TransportLocal, TransportGDrive:
		return true
	}
	return false
}

// Transport defines a storage backend configuration
type Transport struct {
	// Name is the unique identifier
	Name string `mapstructure:"name"`

	// Type identifies the backend
	Type TransportType `mapstructure:"type"`

	// ClientID for OAuth (gdrive)
	ClientID string `mapstructure:"client_id"`

	// ClientSecret for OAuth (gdrive)
	ClientSecret string `mapstructure:"client_secret"`

	// TokenPath where the OAuth token is cached (gdrive)
	TokenPath string `mapstructure:"token_path"`
}

// Source is a named directory tree that can be scanned into a snapshot
type Source struct {
	// Name is the unique identifier
	Name string `mapstructure:"name"`

	// Transport name reference
	Transport string `mapstructure:"transport"`

	// Root path within the transport
	Root string `mapstructure:"root"`

	// Ignore glob patterns applied in addition to the global scan ignores
	Ignore []string `mapstructure:"ignore"`
}
