package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// resolveExisting replaces NEW targets whose label matches a stored field
// with that field, and checks that every existing-field target is known.
func resolveExisting(m *contact.MappingResult, fields []contact.CustomFieldDef) (*contact.MappingResult, error) {
	byLabel := make(map[string]string, len(fields))
	byID := make(map[string]bool, len(fields))
	for _, f := range fields {
		byID[f.ID] = true
		key := contact.LabelKey(f.Label)
		if _, taken := byLabel[key]; !taken {
			byLabel[key] = f.ID
		}
	}

	resolved := m.Clone()
	for _, h := range resolved.Headers {
		e := resolved.Entries[h]
		switch e.Target.Kind {
		case contact.TargetExistingCustom:
			if !byID[e.Target.FieldID] {
				return nil, fmt.Errorf("%w: header %q references unknown field %q", contact.ErrInvalidTarget, h, e.Target.FieldID)
			}
		case contact.TargetNewCustom:
			if id, ok := byLabel[contact.LabelKey(e.Target.Label)]; ok {
				e.Target = contact.ExistingCustom(id)
				resolved.Entries[h] = e
			}
		}
	}
	return resolved, nil
}

// checkDuplicates enforces the duplicate-target policy.
func checkDuplicates(policy string, m *contact.MappingResult) error {
	if policy != DuplicateReject {
		return nil
	}
	dups := m.DuplicateTargets()
	if len(dups) == 0 {
		return nil
	}
	targets := make([]string, 0, len(dups))
	for t := range dups {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		parts = append(parts, fmt.Sprintf("%s <- %s", t, strings.Join(dups[t], ", ")))
	}
	return fmt.Errorf("%w: %s", contact.ErrDuplicateTarget, strings.Join(parts, "; "))
}

// materialize creates one text field per distinct remaining NEW label and
// rewrites those targets to the created ids. Any failure is fatal.
func (x *Executor) materialize(ctx context.Context, m *contact.MappingResult) ([]contact.CustomFieldDef, error) {
	labels := m.NewFieldLabels()
	if len(labels) == 0 {
		return nil, nil
	}

	ids := make(map[string]string, len(labels))
	created := make([]contact.CustomFieldDef, 0, len(labels))
	for _, label := range labels {
		if err := ctx.Err(); err != nil {
			return created, fmt.Errorf("%w: %w", contact.ErrFieldMaterialization, err)
		}
		def, err := x.store.CreateField(ctx, contact.CustomFieldDef{
			Label: label,
			Type:  contact.FieldTypeText,
		})
		if err != nil {
			return created, fmt.Errorf("%w: label %q: %w", contact.ErrFieldMaterialization, label, err)
		}
		ids[contact.LabelKey(label)] = def.ID
		created = append(created, def)
		x.logger.Info(ctx, "custom field created", zap.String("field.id", def.ID), zap.String("field.label", def.Label))
	}

	for _, h := range m.Headers {
		e := m.Entries[h]
		if e.Target.Kind != contact.TargetNewCustom {
			continue
		}
		e.Target = contact.ExistingCustom(ids[contact.LabelKey(e.Target.Label)])
		m.Entries[h] = e
	}
	return created, nil
}
