// Package onboarding provides the plain registration and lookup surface for
// organizations, investors and bond instances. No invariants beyond
// uniqueness; the trade orchestrator validates against these records.
package onboarding

import (
	"context"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/monsele/Converge/db"
	cerrors "github.com/monsele/Converge/errors"
	"github.com/monsele/Converge/store"
)

// Service exposes create/read operations over the relational store.
type Service struct {
	db  *db.DB
	log zerolog.Logger
}

// NewService builds the onboarding service.
func NewService(database *db.DB, log zerolog.Logger) *Service {
	return &Service{
		db:  database,
		log: log.With().Str("component", "onboarding").Logger(),
	}
}

// OrganizationRequest carries organization registration parameters.
type OrganizationRequest struct {
	Name          string `json:"name"`
	Country       string `json:"country"`
	IssuerAddress string `json:"issuer_address"`
}

// CreateOrganization registers an issuer organization.
func (s *Service) CreateOrganization(ctx context.Context, req OrganizationRequest) (*store.Organization, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, cerrors.New(cerrors.ErrCodeValidation, "organization name is required")
	}

	org := &store.Organization{
		Name:          req.Name,
		Country:       req.Country,
		IssuerAddress: req.IssuerAddress,
	}
	if err := s.db.Client().WithContext(ctx).Create(org).Error; err != nil {
		if cerrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, cerrors.Newf(cerrors.ErrCodeValidation, "organization %q already exists", req.Name)
		}
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to create organization").WithCause(err)
	}
	return org, nil
}

// GetOrganization returns an organization by id.
func (s *Service) GetOrganization(ctx context.Context, id uint) (*store.Organization, error) {
	var org store.Organization
	if err := s.db.Client().WithContext(ctx).First(&org, id).Error; err != nil {
		if cerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cerrors.Newf(cerrors.ErrCodeNotFound, "organization %d does not exist", id)
		}
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to load organization").WithCause(err)
	}
	return &org, nil
}

// InvestorRequest carries investor registration parameters.
type InvestorRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
}

// CreateInvestor registers an investor.
func (s *Service) CreateInvestor(ctx context.Context, req InvestorRequest) (*store.Investor, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, cerrors.New(cerrors.ErrCodeValidation, "investor email is required")
	}

	inv := &store.Investor{
		Name:          req.Name,
		Email:         req.Email,
		WalletAddress: req.WalletAddress,
	}
	if err := s.db.Client().WithContext(ctx).Create(inv).Error; err != nil {
		if cerrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, cerrors.Newf(cerrors.ErrCodeValidation, "investor with email %q already exists", req.Email)
		}
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to create investor").WithCause(err)
	}
	return inv, nil
}

// GetInvestor returns an investor by id.
func (s *Service) GetInvestor(ctx context.Context, id uint) (*store.Investor, error) {
	var inv store.Investor
	if err := s.db.Client().WithContext(ctx).First(&inv, id).Error; err != nil {
		if cerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cerrors.Newf(cerrors.ErrCodeNotFound, "investor %d does not exist", id)
		}
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to load investor").WithCause(err)
	}
	return &inv, nil
}

// BondInstanceRequest carries bond-offering registration parameters.
type BondInstanceRequest struct {
	OrganizationID  uint      `json:"organization_id"`
	ISIN            string    `json:"isin"`
	Currency        string    `json:"currency"`
	TotalSize       int64     `json:"total_size"`
	FaceValue       int64     `json:"face_value"`
	Maturity        time.Time `json:"maturity"`
	CouponRateBps   uint32    `json:"coupon_rate_bps"`
	ConversionRatio string    `json:"conversion_ratio"`
	LedgerBondID    uint64    `json:"ledger_bond_id"`
}

// CreateBondInstance registers a bond offering for an existing organization.
func (s *Service) CreateBondInstance(ctx context.Context, req BondInstanceRequest) (*store.BondInstance, error) {
	if strings.TrimSpace(req.ISIN) == "" {
		return nil, cerrors.New(cerrors.ErrCodeValidation, "ISIN is required")
	}
	if req.FaceValue <= 0 {
		return nil, cerrors.New(cerrors.ErrCodeValidation, "face value must be positive")
	}
	if _, err := math.LegacyNewDecFromStr(req.ConversionRatio); err != nil {
		return nil, cerrors.Newf(cerrors.ErrCodeValidation, "malformed conversion ratio %q", req.ConversionRatio)
	}
	if _, err := s.GetOrganization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}

	bond := &store.BondInstance{
		OrganizationID:  req.OrganizationID,
		ISIN:            req.ISIN,
		Currency:        req.Currency,
		TotalSize:       req.TotalSize,
		FaceValue:       req.FaceValue,
		Maturity:        req.Maturity,
		CouponRateBps:   req.CouponRateBps,
		ConversionRatio: req.ConversionRatio,
		LedgerBondID:    req.LedgerBondID,
	}
	if err := s.db.Client().WithContext(ctx).Create(bond).Error; err != nil {
		if cerrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, cerrors.Newf(cerrors.ErrCodeValidation, "bond instance with ISIN %q already exists", req.ISIN)
		}
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to create bond instance").WithCause(err)
	}
	return bond, nil
}

// GetBondInstance returns a bond instance by id.
func (s *Service) GetBondInstance(ctx context.Context, id uint) (*store.BondInstance, error) {
	var bond store.BondInstance
	if err := s.db.Client().WithContext(ctx).First(&bond, id).Error; err != nil {
		if cerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cerrors.Newf(cerrors.ErrCodeNotFound, "bond instance %d does not exist", id)
		}
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to load bond instance").WithCause(err)
	}
	return &bond, nil
}

// ListBondInstances returns all registered bond instances, newest first.
func (s *Service) ListBondInstances(ctx context.Context) ([]store.BondInstance, error) {
	var bonds []store.BondInstance
	if err := s.db.Client().WithContext(ctx).Order("created_at DESC").Find(&bonds).Error; err != nil {
		return nil, cerrors.New(cerrors.ErrCodeDatabase, "failed to list bond instances").WithCause(err)
	}
	return bonds, nil
}
