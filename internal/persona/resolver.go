// Package persona resolves persona templates into fully concrete personas.
// Resolution is deterministic: the same template and seed always produce the
// same values, because fields are visited in one fixed traversal order.
package persona

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/metalagman/goalpilot/internal/model"
)

// Metadata records how a resolution was produced.
type Metadata struct {
	Seed          int64     `json:"seed"`
	ResolvedAt    time.Time `json:"resolved_at"`
	DynamicFields []string  `json:"dynamic_fields"`
}

// Resolution pairs the authored template with its concrete persona.
type Resolution struct {
	Template model.PersonaTemplate `json:"template"`
	Resolved model.ResolvedPersona `json:"resolved"`
	Metadata Metadata              `json:"metadata"`
}

// Resolver expands dynamic field specs into concrete values.
type Resolver struct{}

// NewResolver constructs a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve expands every dynamic field in the template. Traversal order is
// fixed: parent fields, then children in array order, then insurance and
// preferences. It never fails; unknown field types get a filler value.
func (r *Resolver) Resolve(tpl model.PersonaTemplate, seed int64) Resolution {
	rng := rand.New(rand.NewSource(seed))
	meta := Metadata{
		Seed:       seed,
		ResolvedAt: time.Now().UTC(),
	}

	resolved := model.ResolvedPersona{
		Name:        tpl.Name,
		Description: tpl.Description,
		Traits:      tpl.Traits,
	}

	resolved.Data.ParentFirstName = r.resolveField(rng, &meta, "parent_first_name", tpl.Data.ParentFirstName, model.TypeFirstName)
	resolved.Data.ParentLastName = r.resolveField(rng, &meta, "parent_last_name", tpl.Data.ParentLastName, model.TypeLastName)
	resolved.Data.Phone = r.resolveField(rng, &meta, "phone", tpl.Data.Phone, model.TypePhone)
	resolved.Data.Email = r.resolveField(rng, &meta, "email", tpl.Data.Email, model.TypeEmail)

	for i, child := range tpl.Data.Children {
		prefix := fmt.Sprintf("children[%d].", i)
		rc := model.ResolvedChild{
			FirstName:   r.resolveField(rng, &meta, prefix+"first_name", child.FirstName, model.TypeFirstName),
			LastName:    r.resolveField(rng, &meta, prefix+"last_name", child.LastName, model.TypeLastName),
			DateOfBirth: r.resolveField(rng, &meta, prefix+"date_of_birth", child.DateOfBirth, model.TypeDate),
		}
		rc.IsNewPatient = parseBool(r.resolveField(rng, &meta, prefix+"is_new_patient", child.IsNewPatient, model.TypeBool))
		if !child.HadBracesBefore.IsZero() {
			rc.HadBracesBefore = parseBool(r.resolveField(rng, &meta, prefix+"had_braces_before", child.HadBracesBefore, model.TypeBool))
		}
		rc.SpecialNeeds = r.resolveSpecialNeeds(rng, &meta, prefix+"special_needs", child.SpecialNeeds)
		resolved.Data.Children = append(resolved.Data.Children, rc)
	}

	resolved.Data.InsuranceProvider = r.resolveField(rng, &meta, "insurance_provider", tpl.Data.InsuranceProvider, model.TypeCategory)
	resolved.Data.InsuranceMemberID = r.resolveField(rng, &meta, "insurance_member_id", tpl.Data.InsuranceMemberID, model.TypeID)
	resolved.Data.PreferredLocation = r.resolveField(rng, &meta, "preferred_location", tpl.Data.PreferredLocation, model.TypeCategory)
	resolved.Data.PreferredTime = r.resolveField(rng, &meta, "preferred_time", tpl.Data.PreferredTime, model.TypeCategory)
	if !tpl.Data.HasVisitedBefore.IsZero() {
		resolved.Data.HasVisitedBefore = parseBool(r.resolveField(rng, &meta, "has_visited_before", tpl.Data.HasVisitedBefore, model.TypeBool))
	}

	return Resolution{Template: tpl, Resolved: resolved, Metadata: meta}
}

// resolveField returns the concrete value for one slot. A spec-level seed
// isolates that field on its own generator stream so it reproduces
// independently of everything drawn before it.
func (r *Resolver) resolveField(rng *rand.Rand, meta *Metadata, path string, fv model.FieldValue, fallbackType model.FieldType) string {
	if fv.IsZero() {
		return ""
	}
	spec, ok := fv.Spec()
	if !ok {
		return fv.Value()
	}
	if spec.Type == "" {
		spec.Type = fallbackType
	}
	meta.DynamicFields = append(meta.DynamicFields, path)
	return generate(fieldRNG(rng, spec), spec)
}

func (r *Resolver) resolveSpecialNeeds(rng *rand.Rand, meta *Metadata, path string, fv model.FieldValue) string {
	if fv.IsZero() {
		return "None"
	}
	spec, ok := fv.Spec()
	if !ok {
		if v := fv.Value(); v != "" {
			return v
		}
		return "None"
	}
	meta.DynamicFields = append(meta.DynamicFields, path)
	return genSpecialNeeds(fieldRNG(rng, spec), spec)
}

func fieldRNG(rng *rand.Rand, spec model.FieldSpec) *rand.Rand {
	if spec.Seed != nil {
		return rand.New(rand.NewSource(*spec.Seed))
	}
	return rng
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1":
		return true
	default:
		return false
	}
}
