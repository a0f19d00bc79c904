package gdrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Ning0612/snapdiff/internal/domain"
)

const (
	// MimeTypeFolder is the MIME type of Drive folders
	MimeTypeFolder = "application/vnd.google-apps.folder"
	// PageSize is the number of children fetched per request
	PageSize = 100

	myDriveID = "root"

	listFields   googleapi.Field = "nextPageToken, files(id, name, mimeType, size, modifiedTime)"
	statFields   googleapi.Field = "id, name, mimeType, size, modifiedTime"
	lookupFields googleapi.Field = "files(id)"
)

// Adapter lists a folder tree of a Google Drive account. It never writes.
type Adapter struct {
	service *drive.Service
	root    string // absolute folder path in Drive, "" for My Drive
	folders *folderIndex
}

// folderIndex maps relative paths to Drive ids; "" is the adapter root
type folderIndex struct {
	mu  sync.RWMutex
	ids map[string]string
}

func newFolderIndex(rootID string) *folderIndex {
	return &folderIndex{ids: map[string]string{"": rootID}}
}

func (f *folderIndex) get(rel string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.ids[rel]
	return id, ok
}

func (f *folderIndex) put(rel, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[rel] = id
}

// New opens an adapter with the token stored by Authenticate
func New(ctx context.Context, clientID, clientSecret, tokenPath, root string) (*Adapter, error) {
	client, err := NewAuthenticator(clientID, clientSecret, tokenPath).HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return NewWithService(ctx, svc, root)
}

// NewWithService opens an adapter over a configured Drive service.
// The root folder must already exist.
func NewWithService(ctx context.Context, svc *drive.Service, root string) (*Adapter, error) {
	a := &Adapter{service: svc, root: cleanRoot(root)}

	rootID := myDriveID
	for _, name := range strings.Split(strings.TrimPrefix(a.root, "/"), "/") {
		if name == "" {
			continue
		}
		id, err := a.lookupChild(ctx, rootID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root folder %q: %w", a.root, err)
		}
		rootID = id
	}

	a.folders = newFolderIndex(rootID)
	return a, nil
}

// cleanRoot returns root with a leading and no trailing slash, "" for My Drive
func cleanRoot(root string) string {
	root = strings.Trim(strings.TrimSpace(root), "/")
	if root == "" {
		return ""
	}
	return "/" + path.Clean(root)
}

// checkRel normalizes a path relative to the root, rejecting escapes
func checkRel(rel string) (string, error) {
	if strings.HasPrefix(rel, "/") {
		return "", domain.ErrPermissionDenied
	}
	rel = domain.NormalizePath(rel)
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", domain.ErrPermissionDenied
		}
	}
	return rel, nil
}

// List returns the direct children of the folder at rel, folders first
func (a *Adapter) List(ctx context.Context, rel string) ([]domain.Entry, error) {
	rel, err := checkRel(rel)
	if err != nil {
		return nil, err
	}
	folderID, err := a.resolve(ctx, rel)
	if err != nil {
		return nil, err
	}

	var entries []domain.Entry
	call := a.service.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
		OrderBy("folder,name").
		PageSize(PageSize).
		Fields(listFields)

	err = call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			e := a.entryFromDrive(rel, f)
			if e.IsDir {
				a.folders.put(e.RelativePath, f.Id)
			}
			entries = append(entries, e)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, a.mapError(err)
	}
	return entries, nil
}

// Stat returns metadata for the object at rel
func (a *Adapter) Stat(ctx context.Context, rel string) (domain.Entry, error) {
	rel, err := checkRel(rel)
	if err != nil {
		return domain.Entry{}, err
	}
	id, err := a.resolve(ctx, rel)
	if err != nil {
		return domain.Entry{}, err
	}

	f, err := a.service.Files.Get(id).Fields(statFields).Context(ctx).Do()
	if err != nil {
		return domain.Entry{}, a.mapError(err)
	}
	return a.entryFromDrive(domain.ParentPath(rel), f), nil
}

// Close is a no-op; the HTTP client is owned by the caller
func (a *Adapter) Close() error {
	return nil
}

// Root returns the absolute Drive folder path
func (a *Adapter) Root() string {
	if a.root == "" {
		return "/"
	}
	return a.root
}

// resolve returns the Drive id at rel, walking from the nearest known folder
func (a *Adapter) resolve(ctx context.Context, rel string) (string, error) {
	if id, ok := a.folders.get(rel); ok {
		return id, nil
	}

	parent := domain.ParentPath(rel)
	parentID, err := a.resolve(ctx, parent)
	if err != nil {
		return "", err
	}

	id, err := a.lookupChild(ctx, parentID, domain.BaseName(rel))
	if err != nil {
		return "", err
	}
	a.folders.put(rel, id)
	return id, nil
}

// lookupChild finds the id of the child called name under parentID
func (a *Adapter) lookupChild(ctx context.Context, parentID, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escapeQueryString(name), parentID)
	list, err := a.service.Files.List().
		Q(q).
		PageSize(1).
		Fields(lookupFields).
		Context(ctx).Do()
	if err != nil {
		return "", a.mapError(err)
	}
	if len(list.Files) == 0 {
		return "", domain.ErrNotFound
	}
	return list.Files[0].Id, nil
}

// escapeQueryString escapes backslashes and quotes for Drive queries
func escapeQueryString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// entryFromDrive converts a Drive object found under parent. Folders and
// native Google documents report size 0.
func (a *Adapter) entryFromDrive(parent string, f *drive.File) domain.Entry {
	isDir := f.MimeType == MimeTypeFolder
	rel := domain.JoinPath(parent, f.Name)

	var mod time.Time
	if f.ModifiedTime != "" {
		mod, _ = time.Parse(time.RFC3339Nano, f.ModifiedTime)
	}

	e := domain.Entry{
		Name:         f.Name,
		FullPath:     path.Join(a.Root(), rel),
		RelativePath: rel,
		IsDir:        isDir,
		ModTime:      mod,
	}
	if !isDir {
		e.Size = f.Size
	}
	return e
}

// mapError converts Drive API failures to domain errors
func (a *Adapter) mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return domain.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.ErrPermissionDenied
		case http.StatusTooManyRequests:
			return fmt.Errorf("rate limit exceeded: %w", err)
		}
	}

	if strings.Contains(err.Error(), "notFound") {
		return domain.ErrNotFound
	}
	return err
}
