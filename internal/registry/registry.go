// Package registry resolves patient identities. Every capture event must
// reference a registered patient before the pipeline will process it.
package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/swasya-health/capture-pipeline/internal/model"
	"github.com/swasya-health/capture-pipeline/internal/store"
)

// Registry answers patient identity lookups.
type Registry interface {
	Exists(ctx context.Context, patientID string) (bool, error)
	Get(ctx context.Context, patientID string) (*model.Patient, error)
	Register(ctx context.Context, p *model.Patient) (*model.Patient, error)
}

// NewPatientID generates a patient identifier in the PAT_XXXXXXXX format.
func NewPatientID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "PAT_" + strings.ToUpper(hex[:8])
}

// storeRegistry implements Registry over the persistence layer.
type storeRegistry struct {
	st store.Store
}

// New creates a store-backed Registry.
func New(st store.Store) Registry {
	return &storeRegistry{st: st}
}

func (r *storeRegistry) Exists(ctx context.Context, patientID string) (bool, error) {
	p, err := r.st.GetPatient(ctx, patientID)
	if err != nil {
		return false, eris.Wrapf(err, "registry: lookup %s", patientID)
	}
	return p != nil, nil
}

func (r *storeRegistry) Get(ctx context.Context, patientID string) (*model.Patient, error) {
	p, err := r.st.GetPatient(ctx, patientID)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: get %s", patientID)
	}
	if p == nil {
		return nil, eris.Errorf("registry: patient not found: %s", patientID)
	}
	return p, nil
}

// Register assigns a fresh patient ID when none is supplied and persists the
// record.
func (r *storeRegistry) Register(ctx context.Context, p *model.Patient) (*model.Patient, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, eris.New("registry: patient name is required")
	}
	if p.ID == "" {
		p.ID = NewPatientID()
	}
	if err := r.st.CreatePatient(ctx, p); err != nil {
		return nil, eris.Wrapf(err, "registry: register %s", p.ID)
	}
	return p, nil
}
