package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	differ := NewDiffer()

	t.Run("identical snapshots produce no changes", func(t *testing.T) {
		snap := Snapshot{"Title": "Scope 1 emissions", "Value": "1200", "Unit": "tCO2e"}
		changes := differ.Diff(EntityDataPoint, snap, snap)
		assert.Empty(t, changes)
	})

	t.Run("one change per differing field with old and new values", func(t *testing.T) {
		old := Snapshot{"Title": "Scope 1 emissions", "Value": "1200", "Unit": "tCO2e"}
		new := Snapshot{"Title": "Scope 1 emissions", "Value": "1350", "Unit": "ktCO2e"}

		changes := differ.Diff(EntityDataPoint, old, new)
		require.Len(t, changes, 2)
		assert.Equal(t, FieldChange{Field: "Value", OldValue: "1200", NewValue: "1350"}, changes[0])
		assert.Equal(t, FieldChange{Field: "Unit", OldValue: "tCO2e", NewValue: "ktCO2e"}, changes[1])
	})

	t.Run("changes follow the tracked-field policy order", func(t *testing.T) {
		old := Snapshot{"Name": "Contributor", "Description": "d1", "Permissions": "a,b"}
		new := Snapshot{"Name": "Contributor v2", "Description": "d2", "Permissions": "a,c"}

		changes := differ.Diff(EntityRole, old, new)
		require.Len(t, changes, 3)
		assert.Equal(t, "Name", changes[0].Field)
		assert.Equal(t, "Description", changes[1].Field)
		assert.Equal(t, "Permissions", changes[2].Field)
	})

	t.Run("untracked fields are excluded by policy", func(t *testing.T) {
		old := Snapshot{"Title": "t", "InternalRevision": "7"}
		new := Snapshot{"Title": "t", "InternalRevision": "8"}
		changes := differ.Diff(EntityDataPoint, old, new)
		assert.Empty(t, changes)
	})

	t.Run("unknown entity type yields no changes", func(t *testing.T) {
		changes := differ.Diff("Branding", Snapshot{"Logo": "a"}, Snapshot{"Logo": "b"})
		assert.Empty(t, changes)
	})

	t.Run("field appearing only in new snapshot is a change from empty", func(t *testing.T) {
		changes := differ.Diff(EntityDataPoint, Snapshot{}, Snapshot{"Value": "42"})
		require.Len(t, changes, 1)
		assert.Equal(t, FieldChange{Field: "Value", OldValue: "", NewValue: "42"}, changes[0])
	})
}

func TestJoinSet(t *testing.T) {
	t.Run("equal content in different order canonicalizes identically", func(t *testing.T) {
		assert.Equal(t, JoinSet([]string{"b", "a", "c"}), JoinSet([]string{"c", "b", "a"}))
	})

	t.Run("does not mutate its input", func(t *testing.T) {
		in := []string{"b", "a"}
		_ = JoinSet(in)
		assert.Equal(t, []string{"b", "a"}, in)
	})
}
