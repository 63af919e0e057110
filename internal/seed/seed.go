// Package seed imports persons from YAML files.
//
// A file lists persons under a local key. Parent and spouse fields name other
// keys in the same file, or ids of persons already stored:
//
//	persons:
//	  - key: dad
//	    name: João
//	    gender: M
//	    birth_date: 1960-01-01
//	    birth_region: SP
//	  - key: ana
//	    name: Ana
//	    gender: F
//	    father: dad
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kincore/internal/core"
	"kincore/internal/logger"
	"kincore/pkg/domain"
)

const dateLayout = "2006-01-02"

// File is the YAML document root.
type File struct {
	Persons []Entry `yaml:"persons"`
}

// Entry is one person in a seed file.
type Entry struct {
	Key                string `yaml:"key"`
	ID                 string `yaml:"id,omitempty"`
	Name               string `yaml:"name"`
	Gender             string `yaml:"gender"`
	BirthDate          string `yaml:"birth_date,omitempty"`
	DeathDate          string `yaml:"death_date,omitempty"`
	DeathDateUncertain string `yaml:"death_date_uncertain,omitempty"`
	Birthplace         string `yaml:"birthplace,omitempty"`
	BirthRegion        string `yaml:"birth_region,omitempty"`
	History            string `yaml:"history,omitempty"`
	Father             string `yaml:"father,omitempty"`
	Mother             string `yaml:"mother,omitempty"`
	Spouse             string `yaml:"spouse,omitempty"`
	Owner              string `yaml:"owner,omitempty"`
}

// Result reports what an import created.
type Result struct {
	// IDs maps entry keys to stored person ids.
	IDs      map[string]string
	Warnings []domain.Violation
}

// Parse decodes and validates a seed document.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, errors.New("seed file is empty")
		}
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	seen := make(map[string]bool, len(f.Persons))
	for i := range f.Persons {
		f.Persons[i] = f.Persons[i].trimmed()
		key := f.Persons[i].Key
		if key == "" {
			return File{}, fmt.Errorf("persons[%d]: key is required", i)
		}
		if seen[key] {
			return File{}, fmt.Errorf("persons[%d]: duplicate key %q", i, key)
		}
		seen[key] = true
	}
	return f, nil
}

// ParseFile reads path and calls Parse.
func ParseFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer fh.Close()
	return Parse(fh)
}

// trimmed strips padding from the key and the fields that reference keys.
func (e Entry) trimmed() Entry {
	e.Key = strings.TrimSpace(e.Key)
	e.ID = strings.TrimSpace(e.ID)
	e.Father = strings.TrimSpace(e.Father)
	e.Mother = strings.TrimSpace(e.Mother)
	e.Spouse = strings.TrimSpace(e.Spouse)
	e.Owner = strings.TrimSpace(e.Owner)
	return e
}

func parseDate(key, field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %s must be YYYY-MM-DD", key, field)
	}
	return &t, nil
}

func (e Entry) person() (domain.Person, error) {
	birth, err := parseDate(e.Key, "birth_date", e.BirthDate)
	if err != nil {
		return domain.Person{}, err
	}
	death, err := parseDate(e.Key, "death_date", e.DeathDate)
	if err != nil {
		return domain.Person{}, err
	}
	return domain.Person{
		Base:               domain.Base{ID: e.ID},
		Name:               e.Name,
		Gender:             domain.Gender(strings.ToUpper(strings.TrimSpace(e.Gender))),
		BirthDate:          birth,
		DeathDate:          death,
		DeathDateUncertain: e.DeathDateUncertain,
		Birthplace:         e.Birthplace,
		BirthRegion:        e.BirthRegion,
		History:            e.History,
		OwnerID:            e.Owner,
	}, nil
}

// Import creates every entry through svc as viewer. Persons are created first
// and linked in a second pass so entries may reference each other in any
// order. Import stops at the first failure; persons created before it remain.
func Import(ctx context.Context, svc *core.Service, viewer domain.Viewer, f File) (Result, error) {
	log := logger.FromContext(ctx).With(logger.Scope("seed"))
	out := Result{IDs: make(map[string]string, len(f.Persons))}

	for _, e := range f.Persons {
		p, err := e.person()
		if err != nil {
			return out, err
		}
		created, res, err := svc.CreatePerson(ctx, viewer, p)
		if err != nil {
			return out, fmt.Errorf("create %s: %w", e.Key, err)
		}
		out.IDs[e.Key] = created.ID
		out.Warnings = append(out.Warnings, nonBlocking(res)...)
	}

	resolve := func(ref string) string {
		if ref == "" {
			return ""
		}
		if id, ok := out.IDs[ref]; ok {
			return id
		}
		return ref
	}
	for _, e := range f.Persons {
		if e.Father == "" && e.Mother == "" && e.Spouse == "" {
			continue
		}
		father, mother, spouse := resolve(e.Father), resolve(e.Mother), resolve(e.Spouse)
		_, res, err := svc.UpdatePerson(ctx, viewer, out.IDs[e.Key], func(p *domain.Person) error {
			p.FatherID = domain.Ref(father)
			p.MotherID = domain.Ref(mother)
			p.SpouseID = domain.Ref(spouse)
			return nil
		})
		if err != nil {
			return out, fmt.Errorf("link %s: %w", e.Key, err)
		}
		out.Warnings = append(out.Warnings, nonBlocking(res)...)
	}
	log.Info("seed imported", "persons", len(out.IDs), "warnings", len(out.Warnings))
	return out, nil
}

func nonBlocking(res domain.Result) []domain.Violation {
	var out []domain.Violation
	for _, v := range res.Violations {
		if v.Severity != domain.SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}
