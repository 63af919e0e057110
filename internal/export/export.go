// Package export writes built trees to blob storage as JSON documents keyed
// by owner and root.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"kincore/internal/blob"
	"kincore/internal/kinship"
	"kincore/internal/logger"
	"kincore/pkg/domain"
)

const (
	keyPrefix   = "trees"
	contentType = "application/json"
)

var (
	// ErrEmptyTree is returned when asked to export a tree without members.
	ErrEmptyTree = errors.New("export: tree is empty")
	// ErrForbidden is returned when the viewer asks for another owner's exports.
	ErrForbidden = errors.New("export: forbidden")
	// ErrInvalidID is returned for owner or root ids that cannot form a key
	// segment.
	ErrInvalidID = errors.New("export: invalid id")
)

// Record describes one stored export.
type Record struct {
	Key         string    `json:"key"`
	OwnerID     string    `json:"owner_id"`
	RootID      string    `json:"root_id"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Nodes       int       `json:"nodes"`
	Size        int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url,omitempty"`
}

// Exporter persists trees into a blob.Store.
type Exporter struct {
	store blob.Store
	now   func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithNow overrides the clock used to name exports.
func WithNow(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// New returns an Exporter writing to store.
func New(store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key returns the blob key an export of rootID by ownerID created at ts uses.
// Each id must be a single path segment.
func Key(ownerID, rootID string, ts time.Time) (string, error) {
	for _, id := range []string{ownerID, rootID} {
		if err := checkSegment(id); err != nil {
			return "", err
		}
	}
	return path.Join(keyPrefix, ownerID, rootID, strconv.FormatInt(ts.UnixNano(), 10)+".json"), nil
}

func checkSegment(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// ownerOf returns the owner a tree's export is filed under: the root's owner,
// falling back to the viewer.
func ownerOf(viewer domain.Viewer, tree kinship.Tree) string {
	if root, ok := tree.Nodes[tree.RootID]; ok && root.OwnerID != "" {
		return root.OwnerID
	}
	return viewer.OwnerID
}

// Export writes tree as JSON and returns the stored record.
func (e *Exporter) Export(ctx context.Context, viewer domain.Viewer, tree kinship.Tree) (Record, error) {
	if tree.Empty() {
		return Record{}, ErrEmptyTree
	}
	owner := ownerOf(viewer, tree)
	if !viewer.IsAdmin && owner != viewer.OwnerID {
		return Record{}, ErrForbidden
	}
	payload, err := json.Marshal(tree)
	if err != nil {
		return Record{}, fmt.Errorf("encode tree: %w", err)
	}
	created := e.now()
	key, err := Key(owner, tree.RootID, created)
	if err != nil {
		return Record{}, err
	}
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"root":      tree.RootID,
			"reference": tree.ReferenceID,
			"nodes":     strconv.Itoa(len(tree.Nodes)),
		},
	})
	if err != nil {
		return Record{}, fmt.Errorf("store export: %w", err)
	}
	logger.FromContext(ctx).Info("tree exported",
		logger.Scope("export"), "key", key, "nodes", len(tree.Nodes), "driver", string(e.store.Driver()))
	return Record{
		Key:         key,
		OwnerID:     owner,
		RootID:      tree.RootID,
		ReferenceID: tree.ReferenceID,
		Nodes:       len(tree.Nodes),
		Size:        info.Size,
		CreatedAt:   created,
	}, nil
}

// List returns exports visible to the viewer, newest last within each root.
// Admins may name any owner or pass "" for everyone; other viewers only see
// their own.
func (e *Exporter) List(ctx context.Context, viewer domain.Viewer, owner string) ([]Record, error) {
	if !viewer.IsAdmin {
		if owner != "" && owner != viewer.OwnerID {
			return nil, ErrForbidden
		}
		owner = viewer.OwnerID
	}
	prefix := keyPrefix + "/"
	if owner != "" {
		if err := checkSegment(owner); err != nil {
			return nil, err
		}
		prefix += owner + "/"
	}
	infos, err := e.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	out := make([]Record, 0, len(infos))
	for _, info := range infos {
		rec, ok := parseKey(info.Key)
		if !ok {
			continue
		}
		rec.Size = info.Size
		rec.ReferenceID = info.Metadata["reference"]
		if n, err := strconv.Atoi(info.Metadata["nodes"]); err == nil {
			rec.Nodes = n
		}
		out = append(out, rec)
	}
	return out, nil
}

// URL returns a link to an export the viewer owns. Drivers without presigning
// yield blob.ErrUnsupported.
func (e *Exporter) URL(ctx context.Context, viewer domain.Viewer, key string, expiry time.Duration) (string, error) {
	rec, ok := parseKey(key)
	if !ok {
		return "", fmt.Errorf("export %s: %w", key, blob.ErrNotFound)
	}
	if !viewer.IsAdmin && rec.OwnerID != viewer.OwnerID {
		return "", ErrForbidden
	}
	if _, err := e.store.Head(ctx, key); err != nil {
		return "", err
	}
	return e.store.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: expiry})
}

// parseKey splits trees/<owner>/<root>/<nanos>.json.
func parseKey(key string) (Record, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != keyPrefix || !strings.HasSuffix(parts[3], ".json") {
		return Record{}, false
	}
	nanos, err := strconv.ParseInt(strings.TrimSuffix(parts[3], ".json"), 10, 64)
	if err != nil {
		return Record{}, false
	}
	return Record{
		Key:       key,
		OwnerID:   parts[1],
		RootID:    parts[2],
		CreatedAt: time.Unix(0, nanos).UTC(),
	}, true
}
