// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Neel-Shah-29/aiflows/pkg/flowmod"

	"github.com/charmbracelet/huh"
)

// Confirm asks a yes/no question. The answer defaults to no. Aborting the
// form (ctrl+c) counts as no.
func Confirm(ctx context.Context, cfg Config, title, description string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(title).
		Affirmative("Overwrite").
		Negative("Keep").
		Value(&ok)
	if description != "" {
		field = field.Description(description)
	}

	if err := newForm(cfg, field).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return ok, nil
}

// ConflictConfirmer returns a flowmod.Confirmer that asks before each
// overwrite using the given prompt configuration.
func ConflictConfirmer(cfg Config) flowmod.Confirmer {
	return func(ctx context.Context, c flowmod.Conflict) (bool, error) {
		return Confirm(ctx, cfg, c.String(), "Replace "+c.Target+"?")
	}
}
