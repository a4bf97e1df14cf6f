package pricing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/domain/shared"
)

// Venture is a cost center. Ventures form a forest; Path is the materialized
// path "/<root-id>/.../<own-id>" and Level the depth (0 for roots).
type Venture struct {
	shared.BaseEntity
	VentureID  int
	Name       string
	Department string
	ParentID   *uuid.UUID
	Path       string
	Level      int
}

// NewVenture creates a root venture
func NewVenture(ventureID int, name, department string) (*Venture, error) {
	if ventureID <= 0 {
		return nil, shared.NewDomainError("INVALID_VENTURE_ID", "Venture ID must be positive")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Venture name cannot be empty")
	}
	v := &Venture{
		BaseEntity: shared.NewBaseEntity(),
		VentureID:  ventureID,
		Name:       name,
		Department: strings.TrimSpace(department),
	}
	v.Path = "/" + v.ID.String()
	return v, nil
}

// AttachTo places the venture under parent, or makes it a root when parent
// is nil. Only the venture's own path is updated; descendants are rebased by
// the repository.
func (v *Venture) AttachTo(parent *Venture) error {
	if parent == nil {
		v.ParentID = nil
		v.Path = "/" + v.ID.String()
		v.Level = 0
		v.Touch()
		return nil
	}
	if parent.ID == v.ID || v.IsAncestorOf(parent.Path) {
		return ErrCycle
	}
	parentID := parent.ID
	v.ParentID = &parentID
	v.Path = parent.Path + "/" + v.ID.String()
	v.Level = parent.Level + 1
	v.Touch()
	return nil
}

// IsRoot returns true if the venture has no parent
func (v *Venture) IsRoot() bool {
	return v.ParentID == nil
}

// IsAncestorOf checks whether otherPath lies strictly below this venture
func (v *Venture) IsAncestorOf(otherPath string) bool {
	return strings.HasPrefix(otherPath, v.Path+"/")
}

// IsDescendantOf checks whether this venture lies strictly below ancestorPath
func (v *Venture) IsDescendantOf(ancestorPath string) bool {
	return strings.HasPrefix(v.Path, ancestorPath+"/")
}

// AncestorIDs extracts the ancestor IDs from the path, root first
func (v *Venture) AncestorIDs() []uuid.UUID {
	parts := strings.Split(strings.Trim(v.Path, "/"), "/")
	if len(parts) <= 1 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		if id, err := uuid.Parse(p); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// RebasePath swaps the oldPrefix of path for newPrefix. It is used to move a
// whole subtree after its root changed parent.
func RebasePath(path, oldPrefix, newPrefix string) string {
	if path == oldPrefix {
		return newPrefix
	}
	if strings.HasPrefix(path, oldPrefix+"/") {
		return newPrefix + path[len(oldPrefix):]
	}
	return path
}

// PathLevel returns the depth encoded in a materialized path
func PathLevel(path string) int {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/")
}
