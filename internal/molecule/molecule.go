// Package molecule keeps per-molecule quantification records: molar mass,
// primary mass, calibration factor and the calibrations it came from.
package molecule

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("molecule: not found")

// Calibration is one measured sensitivity factor for a mass channel.
type Calibration struct {
	Title        string   `yaml:"title" json:"title"`
	Mass         string   `yaml:"mass" json:"mass"`
	FCal         float64  `yaml:"F_cal" json:"F_cal"`
	Type         string   `yaml:"type,omitempty" json:"type,omitempty"`
	ExpDate      string   `yaml:"experiment date,omitempty" json:"experiment_date,omitempty"`
	AnalysisDate string   `yaml:"analysis date,omitempty" json:"analysis_date,omitempty"`
	Chip         string   `yaml:"chip,omitempty" json:"chip,omitempty"`
	NMol         float64  `yaml:"n_mol,omitempty" json:"n_mol,omitempty"`
	QQMS         float64  `yaml:"Q_QMS,omitempty" json:"Q_QMS,omitempty"`
	Notes        []string `yaml:"Notes,omitempty" json:"notes,omitempty"`
}

type Molecule struct {
	Name    string  `yaml:"name" json:"name"`
	Formula string  `yaml:"formula,omitempty" json:"formula,omitempty"`
	M       float64 `yaml:"M,omitempty" json:"M,omitempty"`
	Primary string  `yaml:"primary,omitempty" json:"primary,omitempty"`
	FCal    float64 `yaml:"F_cal,omitempty" json:"F_cal,omitempty"`
	// D is the diffusion constant in m^2/s, KH the Henry's law constant and
	// NEl the electrons transferred per molecule.
	D            float64            `yaml:"D,omitempty" json:"D,omitempty"`
	KH           float64            `yaml:"kH,omitempty" json:"kH,omitempty"`
	NEl          float64            `yaml:"n_el,omitempty" json:"n_el,omitempty"`
	Spectrum     map[string]float64 `yaml:"spectrum,omitempty" json:"spectrum,omitempty"`
	Calibrations []Calibration      `yaml:"calibrations,omitempty" json:"calibrations,omitempty"`
}

// AddCalibration records c. With primary set, its mass becomes the primary
// mass and its factor the molecule's F_cal.
func (m *Molecule) AddCalibration(c Calibration, primary bool) {
	m.Calibrations = append(m.Calibrations, c)
	if primary {
		m.Primary = c.Mass
		m.FCal = c.FCal
	}
}

// Cal returns the factor of the latest calibration for mass, or F_cal for
// the primary mass when no calibration names it.
func (m *Molecule) Cal(mass string) (float64, bool) {
	for i := len(m.Calibrations) - 1; i >= 0; i-- {
		if m.Calibrations[i].Mass == mass {
			return m.Calibrations[i].FCal, true
		}
	}
	if mass == m.Primary && m.FCal != 0 {
		return m.FCal, true
	}
	return 0, false
}

type Store interface {
	Get(name string) (*Molecule, error)
	Put(m *Molecule) error
	List() ([]string, error)
}

// FileStore keeps one <name>.yml file per molecule in Dir.
type FileStore struct {
	Dir string
}

const ext = ".yml"

func (s *FileStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("molecule name %q is not a valid file name", name)
	}
	return filepath.Join(s.Dir, name+ext), nil
}

func (s *FileStore) Get(name string) (*Molecule, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	body, err := ioutil.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	m := &Molecule{}
	if err := yaml.Unmarshal(body, m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	if m.Formula == "" {
		m.Formula = m.Name
	}
	return m, nil
}

func (s *FileStore) Put(m *Molecule) error {
	if m == nil {
		return errors.New("molecule: nil record")
	}
	p, err := s.path(m.Name)
	if err != nil {
		return err
	}
	body, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(p, body, 0644)
}

// List returns the stored molecule names in sorted order.
func (s *FileStore) List() ([]string, error) {
	files, err := ioutil.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ext {
			continue
		}
		names = append(names, strings.TrimSuffix(f.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}
