// Package seed loads the employee/project/task directory from YAML fixtures.
//
// The tracking core only reads the directory; in production other
// subsystems own it. Fixtures let a fresh database be exercised end to end.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/timetrack/tracking"
)

//go:embed demo.yaml
var demoYAML []byte

// Writer is implemented by every store that accepts directory records.
type Writer interface {
	SaveEmployee(ctx context.Context, e tracking.Employee) error
	SaveProject(ctx context.Context, p tracking.Project) error
	SaveTask(ctx context.Context, t tracking.Task) error
}

type Fixture struct {
	Employees []Employee `yaml:"employees"`
	Projects  []Project  `yaml:"projects"`
	Tasks     []Task     `yaml:"tasks"`
}

type Employee struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type Project struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
}

type Task struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Status    string `yaml:"status"`
	ProjectID string `yaml:"project_id"`
}

// Demo returns the built-in demo fixture.
func Demo() *Fixture {
	f, err := Load(bytes.NewReader(demoYAML))
	if err != nil {
		panic(fmt.Sprintf("seed: embedded demo fixture: %v", err))
	}
	return f
}

// LoadFile reads a fixture from disk.
func LoadFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Load(file)
}

// Load decodes and validates a fixture. Unknown keys are rejected.
func Load(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks required fields and that task projects are defined in the
// fixture.
func (f *Fixture) Validate() error {
	var errs []error
	projects := make(map[string]bool, len(f.Projects))

	for i, p := range f.Projects {
		if p.ID == "" || p.Name == "" {
			errs = append(errs, fmt.Errorf("projects[%d]: id and name are required", i))
		}
		projects[p.ID] = true
	}
	for i, e := range f.Employees {
		if e.ID == "" || e.Name == "" {
			errs = append(errs, fmt.Errorf("employees[%d]: id and name are required", i))
		}
	}
	for i, t := range f.Tasks {
		if t.ID == "" || t.Title == "" {
			errs = append(errs, fmt.Errorf("tasks[%d]: id and title are required", i))
		}
		if t.ProjectID != "" && !projects[t.ProjectID] {
			errs = append(errs, fmt.Errorf("tasks[%d]: unknown project %q", i, t.ProjectID))
		}
	}
	return errors.Join(errs...)
}

// Apply upserts the fixture. Projects go first so task references resolve.
func Apply(ctx context.Context, w Writer, f *Fixture) error {
	for _, p := range f.Projects {
		err := w.SaveProject(ctx, tracking.Project{ID: tracking.ProjectID(p.ID), Name: p.Name, Status: p.Status})
		if err != nil {
			return fmt.Errorf("seed project %s: %w", p.ID, err)
		}
	}
	for _, e := range f.Employees {
		err := w.SaveEmployee(ctx, tracking.Employee{ID: tracking.EmployeeID(e.ID), Name: e.Name, Email: e.Email})
		if err != nil {
			return fmt.Errorf("seed employee %s: %w", e.ID, err)
		}
	}
	for _, t := range f.Tasks {
		err := w.SaveTask(ctx, tracking.Task{
			ID:        tracking.TaskID(t.ID),
			Title:     t.Title,
			Status:    t.Status,
			ProjectID: tracking.ProjectID(t.ProjectID),
		})
		if err != nil {
			return fmt.Errorf("seed task %s: %w", t.ID, err)
		}
	}
	return nil
}
