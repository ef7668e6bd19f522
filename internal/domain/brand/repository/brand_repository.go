package repository

import (
	"stylehub/internal/domain/brand/model"

	"gorm.io/gorm"
)

// BrandRepository 接口定义
type BrandRepository interface {
	Create(brand *model.Brand) error
	GetByID(id string) (*model.Brand, error)
	GetList(offset, limit int) ([]model.Brand, int64, error)
	Update(brand *model.Brand) error
}

type brandRepository struct {
	db *gorm.DB
}

// NewBrandRepository 创建新的仓库实例
func NewBrandRepository(db *gorm.DB) BrandRepository {
	return &brandRepository{db: db}
}

func (r *brandRepository) Create(brand *model.Brand) error {
	return r.db.Create(brand).Error
}

func (r *brandRepository) GetByID(id string) (*model.Brand, error) {
	var brand model.Brand
	if err := r.db.Where("id = ?", id).First(&brand).Error; err != nil {
		return nil, err
	}
	return &brand, nil
}

func (r *brandRepository) GetList(offset, limit int) ([]model.Brand, int64, error) {
	var brands []model.Brand
	var total int64

	if err := r.db.Model(&model.Brand{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.Offset(offset).Limit(limit).Find(&brands).Error; err != nil {
		return nil, 0, err
	}
	return brands, total, nil
}

func (r *brandRepository) Update(brand *model.Brand) error {
	return r.db.Save(brand).Error
}
