package service

import (
	"errors"

	"stylehub/internal/domain/brand/model"
	"stylehub/internal/domain/brand/repository"
	"stylehub/pkg/apperr"
	"stylehub/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BrandService interface {
	Create(name, contactEmail, payoutChannel, payoutAccount string) (*model.Brand, error)
	Get(id string) (*model.Brand, error)
	List(offset, limit int) ([]model.Brand, int64, error)
	// UpdatePayoutDestination 更新打款目的地；清空账号会同时禁用打款
	UpdatePayoutDestination(id, channel, account string, enabled bool) (*model.Brand, error)
}

type brandService struct {
	repo repository.BrandRepository
}

func NewBrandService(repo repository.BrandRepository) BrandService {
	return &brandService{repo: repo}
}

func (s *brandService) Create(name, contactEmail, payoutChannel, payoutAccount string) (*model.Brand, error) {
	brand := &model.Brand{
		Name:          name,
		ContactEmail:  contactEmail,
		PayoutChannel: payoutChannel,
		PayoutAccount: payoutAccount,
		PayoutEnabled: payoutChannel != "" && payoutAccount != "",
	}
	if err := s.repo.Create(brand); err != nil {
		return nil, err
	}

	logger.Log.Info("brand created", zap.String("brand_id", brand.ID), zap.String("name", name))
	return brand, nil
}

func (s *brandService) Get(id string) (*model.Brand, error) {
	brand, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "brand %s not found", id)
		}
		return nil, err
	}
	return brand, nil
}

func (s *brandService) List(offset, limit int) ([]model.Brand, int64, error) {
	return s.repo.GetList(offset, limit)
}

func (s *brandService) UpdatePayoutDestination(id, channel, account string, enabled bool) (*model.Brand, error) {
	brand, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	brand.PayoutChannel = channel
	brand.PayoutAccount = account
	brand.PayoutEnabled = enabled && channel != "" && account != ""

	if err := s.repo.Update(brand); err != nil {
		return nil, err
	}
	return brand, nil
}
