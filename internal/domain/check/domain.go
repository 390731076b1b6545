package check

import (
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/Trustwatch/internal/domain"
)

// Definition is a named periodic verification task. Name is the key and never changes.
type Definition struct {
	Name        string        `json:"name"`
	Description string        `json:"desc"`
	Spacing     time.Duration `json:"spacing"`
	Timeout     time.Duration `json:"timeout"` // 0 waits indefinitely
	Server      string        `json:"server,omitempty"`
	Port        int           `json:"port,omitempty"`
	Enabled     bool          `json:"enabled"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Patch lists the mutable fields of a Definition. Nil fields are left alone.
// Name is accepted only to reject renames explicitly.
type Patch struct {
	Name        *string
	Description *string
	Spacing     *time.Duration
	Timeout     *time.Duration
	Server      *string
	Port        *int
	Enabled     *bool
}

func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty check name", domain.ErrInvalidArgument)
	}
	if d.Spacing <= 0 {
		return fmt.Errorf("%w: spacing must be positive, got %s", domain.ErrInvalidArgument, d.Spacing)
	}
	if d.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", domain.ErrInvalidArgument, d.Timeout)
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("%w: port out of range: %d", domain.ErrInvalidArgument, d.Port)
	}
	return nil
}

// Apply returns a copy of d with the patch applied and validated.
func (p Patch) Apply(d Definition) (Definition, error) {
	if p.Name != nil && *p.Name != d.Name {
		return d, fmt.Errorf("%w: check name is immutable", domain.ErrInvalidArgument)
	}
	out := d
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Spacing != nil {
		out.Spacing = *p.Spacing
	}
	if p.Timeout != nil {
		out.Timeout = *p.Timeout
	}
	if p.Server != nil {
		out.Server = *p.Server
	}
	if p.Port != nil {
		out.Port = *p.Port
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if err := out.Validate(); err != nil {
		return d, err
	}
	return out, nil
}
