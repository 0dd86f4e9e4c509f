package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"landreg/internal/certificate/models"
	recm "landreg/internal/recording/models"
	resm "landreg/internal/resource/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/sentinel"
)

// TractReader is the part of the tract engine certificates read.
type TractReader interface {
	GetRecordingAntecedent(ctx context.Context, resource *resm.Resource, beforeAct *recm.RecordingAct,
		returnAmendmentActs bool) (*recm.RecordingAct, error)
	GetAliveHardLimitations(ctx context.Context, resourceID id.ResourceID, t time.Time) ([]*recm.RecordingAct, error)
}

// PartyIndex finds acts by the name of one of their parties.
type PartyIndex interface {
	ListActsByPartyName(ctx context.Context, name string) ([]*recm.RecordingAct, error)
}

type ResourceStore interface {
	FindByID(ctx context.Context, resourceID id.ResourceID) (*resm.Resource, error)
}

// TextBuilder renders the legal text of a certificate from the tract as it
// stands at the issue time.
type TextBuilder struct {
	tract     TractReader
	parties   PartyIndex
	resources ResourceStore
}

func NewTextBuilder(tract TractReader, parties PartyIndex, resources ResourceStore) *TextBuilder {
	return &TextBuilder{tract: tract, parties: parties, resources: resources}
}

// Build returns the certificate text. Certificates whose statement is false
// for the current tract are rejected with CodeInvariantViolation.
func (b *TextBuilder) Build(ctx context.Context, c *models.Certificate, at time.Time) (string, error) {
	var lines []string
	lines = append(lines,
		strings.ToUpper(c.Type.Name()),
		"Certificado: "+c.UID,
		"Trámite: "+c.TransactionUID,
	)

	if c.Type == models.TypeNoPropiedad {
		body, err := b.noProperty(ctx, c)
		if err != nil {
			return "", err
		}
		lines = append(lines, body...)
		return finish(lines, at), nil
	}

	resource, err := b.resource(ctx, c)
	if err != nil {
		return "", err
	}
	lines = append(lines, "Folio: "+resource.Describe(), "Datos del folio: "+snapshot(resource))

	antecedent, err := b.tract.GetRecordingAntecedent(ctx, resource, nil, true)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read recording antecedent")
	}

	var body []string
	switch c.Type {
	case models.TypePropiedad:
		body, err = ownership(antecedent, resource)
	case models.TypeInscripcion:
		body, err = inscription(antecedent, resource)
	case models.TypeGravamen, models.TypeLibertadGravamen:
		body, err = b.limitations(ctx, c, antecedent, resource, at)
	}
	if err != nil {
		return "", err
	}
	lines = append(lines, body...)
	return finish(lines, at), nil
}

func (b *TextBuilder) resource(ctx context.Context, c *models.Certificate) (*resm.Resource, error) {
	resource, err := b.resources.FindByID(ctx, c.ResourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "El folio del certificado %s no existe.", c.UID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource")
	}
	return resource, nil
}

func ownership(antecedent *recm.RecordingAct, resource *resm.Resource) ([]string, error) {
	if antecedent.IsEmpty() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El folio %s no tiene titular registrado.", resource.UID)
	}
	return []string{"Titulares: " + parties(antecedent), "Antecedente: " + actLine(antecedent)}, nil
}

func inscription(antecedent *recm.RecordingAct, resource *resm.Resource) ([]string, error) {
	if antecedent.IsEmpty() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El folio %s no tiene inscripciones vigentes.", resource.UID)
	}
	return []string{"Inscripción vigente: " + actLine(antecedent)}, nil
}

func (b *TextBuilder) limitations(ctx context.Context, c *models.Certificate, antecedent *recm.RecordingAct,
	resource *resm.Resource, at time.Time) ([]string, error) {
	alive, err := b.tract.GetAliveHardLimitations(ctx, resource.ID, at)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read hard limitations")
	}
	if c.Type == models.TypeLibertadGravamen && len(alive) > 0 {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El folio %s tiene %d gravámenes vigentes; no puede emitirse un certificado de libertad de gravamen.",
			resource.UID, len(alive))
	}

	var lines []string
	if !antecedent.IsEmpty() {
		lines = append(lines, "Titulares: "+parties(antecedent))
	}
	if len(alive) == 0 {
		return append(lines, "Gravámenes vigentes: ninguno."), nil
	}
	lines = append(lines, "Gravámenes vigentes:")
	for _, a := range alive {
		line := "- " + actLine(a)
		if len(a.Parties) > 0 {
			line += ". Partes: " + parties(a)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// noProperty fails when the person is a current owner of any folio: one of
// the acts naming them is still the domain antecedent of its resource.
func (b *TextBuilder) noProperty(ctx context.Context, c *models.Certificate) ([]string, error) {
	acts, err := b.parties.ListActsByPartyName(ctx, c.OwnerName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search acts by party")
	}
	checked := map[id.ResourceID]bool{}
	for _, a := range acts {
		if !a.IsActive() || !a.Record.IsClosed() || !a.Type.IsDomainAct || checked[a.ResourceID] {
			continue
		}
		checked[a.ResourceID] = true
		resource, err := b.resources.FindByID(ctx, a.ResourceID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource")
		}
		antecedent, err := b.tract.GetRecordingAntecedent(ctx, resource, nil, true)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read recording antecedent")
		}
		if antecedent.ID == a.ID {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
				"%s es titular del folio %s; no puede emitirse un certificado de no propiedad.",
				c.OwnerName, resource.UID)
		}
	}
	return []string{
		"Persona: " + c.OwnerName,
		"No se encontraron folios vigentes a nombre de la persona.",
	}, nil
}

func finish(lines []string, at time.Time) string {
	lines = append(lines, "Fecha de emisión: "+at.UTC().Format("2006-01-02 15:04")+" UTC")
	return strings.Join(lines, "\n")
}

func snapshot(resource *resm.Resource) string {
	data := resource.SnapshotData()
	parts := make([]string, 0, len(data))
	for _, key := range slices.Sorted(maps.Keys(data)) {
		if value := strings.TrimSpace(data[key]); value != "" {
			parts = append(parts, key+"="+value)
		}
	}
	return strings.Join(parts, "; ")
}

func actLine(a *recm.RecordingAct) string {
	return fmt.Sprintf("%s, documento %s presentado el %s",
		a.Type.Label(), a.Record.UID, a.PresentationTime().UTC().Format("2006-01-02"))
}

func parties(a *recm.RecordingAct) string {
	if len(a.Parties) == 0 {
		return "sin partes registradas"
	}
	names := make([]string, 0, len(a.Parties))
	for _, p := range a.Parties {
		names = append(names, p.Name+" ("+p.Role+")")
	}
	return strings.Join(names, ", ")
}
