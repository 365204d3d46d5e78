package persona

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/metalagman/goalpilot/internal/model"
)

// Value pools for the table-driven generators. Draw order is what makes
// resolution deterministic, so pools are never reordered.
var (
	firstNames = []string{
		"Emma", "Liam", "Olivia", "Noah", "Ava", "Ethan", "Sophia", "Mason",
		"Isabella", "Lucas", "Mia", "Oliver", "Charlotte", "Elijah", "Amelia",
		"James", "Harper", "Benjamin", "Evelyn", "Henry",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Wilson",
		"Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin", "Lee",
	}
	emailDomains = []string{"gmail.com", "yahoo.com", "outlook.com", "icloud.com", "aol.com"}
	phoneFormats = []string{"(%s) %s-%s", "%s-%s-%s", "%s%s%s"}
)

// fillerValue is returned for unknown field types.
const fillerValue = "sample-value"

// specialNeedsNone is the sentinel pool option that never gets drawn.
const specialNeedsNone = "none"

// defaultSpecialNeedsProb gates whether a special need is drawn at all.
const defaultSpecialNeedsProb = 0.1

type generatorFunc func(rng *rand.Rand, spec model.FieldSpec) string

var generators = map[model.FieldType]generatorFunc{
	model.TypeFirstName: genFirstName,
	model.TypeLastName:  genLastName,
	model.TypeFullName:  genFullName,
	model.TypePhone:     genPhone,
	model.TypeEmail:     genEmail,
	model.TypeDate:      genDate,
	model.TypeBool:      genBool,
	model.TypeCategory:  genCategory,
	model.TypeID:        genID,
}

func generate(rng *rand.Rand, spec model.FieldSpec) string {
	gen, ok := generators[spec.Type]
	if !ok {
		return fillerValue
	}
	return gen(rng, spec)
}

func genFirstName(rng *rand.Rand, _ model.FieldSpec) string {
	return firstNames[rng.Intn(len(firstNames))]
}

func genLastName(rng *rand.Rand, _ model.FieldSpec) string {
	return lastNames[rng.Intn(len(lastNames))]
}

func genFullName(rng *rand.Rand, spec model.FieldSpec) string {
	return genFirstName(rng, spec) + " " + genLastName(rng, spec)
}

func genPhone(rng *rand.Rand, _ model.FieldSpec) string {
	area := strconv.Itoa(rng.Intn(8)+2) + digits(rng, 2)
	exchange := strconv.Itoa(rng.Intn(8)+2) + digits(rng, 2)
	line := digits(rng, 4)
	format := phoneFormats[rng.Intn(len(phoneFormats))]
	return fmt.Sprintf(format, area, exchange, line)
}

func genEmail(rng *rand.Rand, spec model.FieldSpec) string {
	name := strings.ToLower(genFirstName(rng, spec)) + "." + strings.ToLower(genLastName(rng, spec))
	return fmt.Sprintf("%s%d@%s", name, rng.Intn(100), emailDomains[rng.Intn(len(emailDomains))])
}

func genDate(rng *rand.Rand, spec model.FieldSpec) string {
	min, max := dateRange(spec)
	if max.Before(min) {
		min, max = max, min
	}
	days := int(max.Sub(min).Hours() / 24)
	if days <= 0 {
		return min.Format("2006-01-02")
	}
	return min.AddDate(0, 0, rng.Intn(days+1)).Format("2006-01-02")
}

// dateRange derives [min,max] from explicit bounds or, for dates of birth,
// from min_age/max_age in years.
func dateRange(spec model.FieldSpec) (time.Time, time.Time) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	min := now.AddDate(-18, 0, 0)
	max := now

	if v, ok := spec.Constraints["min_date"]; ok {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			min = t
		}
	}
	if v, ok := spec.Constraints["max_date"]; ok {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			max = t
		}
	}
	if v, ok := spec.Constraints["max_age"]; ok {
		if years, err := strconv.Atoi(v); err == nil {
			min = now.AddDate(-years, 0, 0)
		}
	}
	if v, ok := spec.Constraints["min_age"]; ok {
		if years, err := strconv.Atoi(v); err == nil {
			max = now.AddDate(-years, 0, 0)
		}
	}
	return min, max
}

func genBool(rng *rand.Rand, spec model.FieldSpec) string {
	prob := 0.5
	if v, ok := spec.Constraints["probability"]; ok {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			prob = p
		}
	}
	if rng.Float64() < prob {
		return "true"
	}
	return "false"
}

func genCategory(rng *rand.Rand, spec model.FieldSpec) string {
	if len(spec.Options) == 0 {
		return fillerValue
	}
	return spec.Options[rng.Intn(len(spec.Options))]
}

// genID renders a formatted alphanumeric id. In the format string, 'A' draws
// an uppercase letter and '9' draws a digit; everything else is literal.
func genID(rng *rand.Rand, spec model.FieldSpec) string {
	format := spec.Constraints["format"]
	if format == "" {
		format = "AA9999999"
	}
	var b strings.Builder
	for _, ch := range format {
		switch ch {
		case 'A':
			b.WriteByte(byte('A' + rng.Intn(26)))
		case '9':
			b.WriteByte(byte('0' + rng.Intn(10)))
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// genSpecialNeeds evaluates the has-a-need gate before drawing from the pool
// with the "none" sentinel removed. Gate failure or an empty pool yields the
// literal "None".
func genSpecialNeeds(rng *rand.Rand, spec model.FieldSpec) string {
	prob := defaultSpecialNeedsProb
	if v, ok := spec.Constraints["probability"]; ok {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			prob = p
		}
	}
	gate := rng.Float64() < prob

	pool := make([]string, 0, len(spec.Options))
	for _, opt := range spec.Options {
		if strings.EqualFold(opt, specialNeedsNone) {
			continue
		}
		pool = append(pool, opt)
	}

	if !gate || len(pool) == 0 {
		return "None"
	}
	return pool[rng.Intn(len(pool))]
}

func digits(rng *rand.Rand, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	return b.String()
}
