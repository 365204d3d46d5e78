package persona

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/goalpilot/internal/model"
)

func dynamicTemplate() model.PersonaTemplate {
	return model.PersonaTemplate{
		Name: "busy-parent",
		Data: model.DataInventory{
			ParentFirstName: model.Generated(model.FieldSpec{Type: model.TypeFirstName}),
			ParentLastName:  model.Generated(model.FieldSpec{Type: model.TypeLastName}),
			Phone:           model.Generated(model.FieldSpec{Type: model.TypePhone}),
			Email:           model.Generated(model.FieldSpec{Type: model.TypeEmail}),
			Children: []model.ChildData{
				{
					FirstName:   model.Generated(model.FieldSpec{Type: model.TypeFirstName}),
					LastName:    model.Concrete("Nguyen"),
					DateOfBirth: model.Generated(model.FieldSpec{Type: model.TypeDate, Constraints: map[string]string{"min_age": "6", "max_age": "12"}}),
					IsNewPatient: model.Generated(model.FieldSpec{
						Type: model.TypeBool, Constraints: map[string]string{"probability": "1.0"},
					}),
					SpecialNeeds: model.Generated(model.FieldSpec{
						Type:    model.TypeCategory,
						Options: []string{"none", "wheelchair access", "sensory sensitivity"},
					}),
				},
			},
			InsuranceProvider: model.Generated(model.FieldSpec{Type: model.TypeCategory, Options: []string{"Delta Dental", "Cigna", "Aetna"}}),
			InsuranceMemberID: model.Generated(model.FieldSpec{Type: model.TypeID, Constraints: map[string]string{"format": "AAA-999999"}}),
			PreferredTime:     model.Concrete("mornings"),
		},
		Traits: model.PersonaTraits{Verbosity: "normal"},
	}
}

func TestResolve_NoDynamicFieldsRemain(t *testing.T) {
	t.Parallel()

	res := NewResolver().Resolve(dynamicTemplate(), 7)

	d := res.Resolved.Data
	assert.NotEmpty(t, d.ParentFirstName)
	assert.NotEmpty(t, d.ParentLastName)
	assert.NotEmpty(t, d.Phone)
	assert.NotEmpty(t, d.Email)
	require.Len(t, d.Children, 1)
	assert.NotEmpty(t, d.Children[0].FirstName)
	assert.Equal(t, "Nguyen", d.Children[0].LastName)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, d.Children[0].DateOfBirth)
	assert.True(t, d.Children[0].IsNewPatient)
	assert.NotEmpty(t, d.Children[0].SpecialNeeds)
	assert.NotEmpty(t, d.InsuranceProvider)
	assert.Regexp(t, `^[A-Z]{3}-\d{6}$`, d.InsuranceMemberID)
	assert.Equal(t, "mornings", d.PreferredTime)
}

func TestResolve_DeterministicForSameSeed(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	first := r.Resolve(dynamicTemplate(), 1234)
	second := r.Resolve(dynamicTemplate(), 1234)

	assert.Equal(t, first.Resolved, second.Resolved)
	assert.Equal(t, first.Metadata.DynamicFields, second.Metadata.DynamicFields)
}

func TestResolve_DifferentSeedsDiffer(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	first := r.Resolve(dynamicTemplate(), 1)
	second := r.Resolve(dynamicTemplate(), 2)

	assert.NotEqual(t, first.Resolved.Data, second.Resolved.Data)
}

func TestResolve_FieldSeedReproducesPhone(t *testing.T) {
	t.Parallel()

	seed := int64(42)
	tpl := model.PersonaTemplate{
		Name: "phone-only",
		Data: model.DataInventory{
			ParentFirstName: model.Concrete("Dana"),
			Phone:           model.Generated(model.FieldSpec{Type: model.TypePhone, Seed: &seed}),
		},
	}

	r := NewResolver()
	// Different global seeds must not disturb a field pinned to its own seed.
	first := r.Resolve(tpl, 100)
	second := r.Resolve(tpl, 999)

	require.Equal(t, first.Resolved.Data.Phone, second.Resolved.Data.Phone)
	digitsOnly := regexp.MustCompile(`\D`).ReplaceAllString(first.Resolved.Data.Phone, "")
	assert.Len(t, digitsOnly, 10)
}

func TestResolve_RecordsDottedPaths(t *testing.T) {
	t.Parallel()

	res := NewResolver().Resolve(dynamicTemplate(), 7)

	assert.Contains(t, res.Metadata.DynamicFields, "parent_first_name")
	assert.Contains(t, res.Metadata.DynamicFields, "children[0].date_of_birth")
	assert.Contains(t, res.Metadata.DynamicFields, "children[0].special_needs")
	assert.NotContains(t, res.Metadata.DynamicFields, "preferred_time")
}

func TestResolve_SpecialNeedsGate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		spec     model.FieldSpec
		wantNone bool
	}{
		{
			name: "gate always fails",
			spec: model.FieldSpec{
				Type:        model.TypeCategory,
				Constraints: map[string]string{"probability": "0"},
				Options:     []string{"none", "wheelchair access"},
			},
			wantNone: true,
		},
		{
			name: "pool empty after excluding sentinel",
			spec: model.FieldSpec{
				Type:        model.TypeCategory,
				Constraints: map[string]string{"probability": "1"},
				Options:     []string{"none"},
			},
			wantNone: true,
		},
		{
			name: "gate always passes with real pool",
			spec: model.FieldSpec{
				Type:        model.TypeCategory,
				Constraints: map[string]string{"probability": "1"},
				Options:     []string{"none", "sensory sensitivity"},
			},
			wantNone: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tpl := model.PersonaTemplate{
				Data: model.DataInventory{
					ParentFirstName: model.Concrete("Dana"),
					Children: []model.ChildData{{
						FirstName:    model.Concrete("Ben"),
						LastName:     model.Concrete("Ruiz"),
						DateOfBirth:  model.Concrete("2015-02-10"),
						IsNewPatient: model.Concrete("true"),
						SpecialNeeds: model.Generated(tt.spec),
					}},
				},
			}
			res := NewResolver().Resolve(tpl, 5)
			got := res.Resolved.Data.Children[0].SpecialNeeds
			if tt.wantNone {
				assert.Equal(t, "None", got)
			} else {
				assert.Equal(t, "sensory sensitivity", got)
			}
		})
	}
}

func TestResolve_UnknownFieldTypeGetsFiller(t *testing.T) {
	t.Parallel()

	tpl := model.PersonaTemplate{
		Data: model.DataInventory{
			ParentFirstName: model.Generated(model.FieldSpec{Type: "blood_type"}),
		},
	}
	res := NewResolver().Resolve(tpl, 3)
	assert.Equal(t, "sample-value", res.Resolved.Data.ParentFirstName)
}
