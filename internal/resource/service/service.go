// Package service manages resources: creation with unique UIDs, partitions
// and merges.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"landreg/internal/platform/uid"
	"landreg/internal/resource/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/sentinel"
	"landreg/pkg/requestcontext"
)

const defaultUIDAttempts = 10

// Store is the resource persistence port.
type Store interface {
	Create(ctx context.Context, r *models.Resource) error
	FindByID(ctx context.Context, resID id.ResourceID) (*models.Resource, error)
	FindByUID(ctx context.Context, uid string) (*models.Resource, error)
	ExistsUID(ctx context.Context, uid string) (bool, error)
	Save(ctx context.Context, r *models.Resource) error
	ListPartitions(ctx context.Context, parent id.ResourceID) ([]*models.Resource, error)
}

type Service struct {
	store       Store
	uids        uid.Provider
	logger      *slog.Logger
	uidAttempts int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithUIDAttempts bounds the generate-and-check loop.
func WithUIDAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.uidAttempts = n
		}
	}
}

func New(store Store, uids uid.Provider, opts ...Option) *Service {
	s := &Service{
		store:       store,
		uids:        uids,
		logger:      slog.Default(),
		uidAttempts: defaultUIDAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateRealEstate(ctx context.Context, data models.RealEstate) (*models.Resource, error) {
	data.IsPartitionOf = id.ResourceID{}
	data.MergedInto = id.ResourceID{}
	r, err := models.NewRealEstate(id.NewResourceID(), data, requestcontext.UserID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return r, s.create(ctx, r)
}

func (s *Service) CreateAssociation(ctx context.Context, data models.Association) (*models.Resource, error) {
	r, err := models.NewAssociation(id.NewResourceID(), data, requestcontext.UserID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return r, s.create(ctx, r)
}

func (s *Service) CreateNoProperty(ctx context.Context, data models.NoProperty) (*models.Resource, error) {
	r, err := models.NewNoProperty(id.NewResourceID(), data, requestcontext.UserID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return r, s.create(ctx, r)
}

// CreatePartition subdivides an active parcel. The link is the parent id.
func (s *Service) CreatePartition(ctx context.Context, parentID id.ResourceID, partitionNo string, data models.RealEstate) (*models.Resource, error) {
	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsRealEstate() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El folio %s no es un predio y no puede fraccionarse.", parent.UID)
	}
	if parent.Status == models.StatusMerged {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El predio %s fue fusionado y no puede fraccionarse.", parent.UID)
	}
	if strings.TrimSpace(partitionNo) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Se requiere el número de fracción.")
	}
	siblings, err := s.store.ListPartitions(ctx, parentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list partitions")
	}
	for _, sib := range siblings {
		if sib.RealEstate.PartitionNo == partitionNo {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"El predio %s ya tiene registrada la fracción %s.", parent.UID, partitionNo)
		}
	}

	data.IsPartitionOf = parentID
	data.PartitionNo = partitionNo
	data.MergedInto = id.ResourceID{}
	if data.CadastralKey == "" {
		data.CadastralKey = parent.RealEstate.CadastralKey
	}
	r, err := models.NewRealEstate(id.NewResourceID(), data, requestcontext.UserID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return r, s.create(ctx, r)
}

// MergeInto marks source as absorbed by target.
func (s *Service) MergeInto(ctx context.Context, sourceID, targetID id.ResourceID) (*models.Resource, error) {
	source, err := s.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := source.CanMergeInto(target); err != nil {
		return nil, err
	}
	source.ApplyMergeInto(target.ID)
	if err := s.save(ctx, source); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "resource merged",
		"resource_uid", source.UID,
		"merged_into", target.UID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return source, nil
}

func (s *Service) Get(ctx context.Context, resID id.ResourceID) (*models.Resource, error) {
	r, err := s.store.FindByID(ctx, resID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "No se encontró el folio solicitado.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource")
	}
	return r, nil
}

func (s *Service) GetByUID(ctx context.Context, uid string) (*models.Resource, error) {
	r, err := s.store.FindByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "No existe el folio %s.", uid)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource")
	}
	return r, nil
}

// create assigns a UID that no other resource holds. The provider promises
// uniqueness; the store is still checked before accepting a code.
func (s *Service) create(ctx context.Context, r *models.Resource) error {
	if err := r.CanAssignUID(); err != nil {
		return err
	}
	for attempt := 1; attempt <= s.uidAttempts; attempt++ {
		candidate := r.GenerateUID(s.uids)
		exists, err := s.store.ExistsUID(ctx, candidate)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check resource uid")
		}
		if exists {
			s.logger.WarnContext(ctx, "resource uid collision", "uid", candidate, "attempt", attempt)
			continue
		}
		r.ApplyUID(candidate)
		err = s.store.Create(ctx, r)
		if err == nil {
			s.logger.InfoContext(ctx, "resource created",
				"resource_uid", r.UID,
				"kind", r.Kind,
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil
		}
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			r.UID = ""
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create resource")
	}
	return dErrors.New(dErrors.CodeInternal, "could not generate a unique resource uid")
}

func (s *Service) save(ctx context.Context, r *models.Resource) error {
	if err := s.store.Save(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Newf(dErrors.CodeConflict,
				"El folio %s fue modificado por otro usuario. Vuelva a intentarlo.", r.UID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save resource")
	}
	return nil
}
