package repository

import (
	"errors"

	"fin-advisor-go/internal/model"

	"gorm.io/gorm"
)

// ErrPersonaNotFound 表示指定用户还没有完成引导、没有画像记录。
var ErrPersonaNotFound = errors.New("persona not found")

// PersonaRepository 接口定义了用户画像的持久化操作。
type PersonaRepository interface {
	Upsert(persona *model.Persona) error
	FindByUserID(userID uint) (*model.Persona, error)
}

// personaRepository 是 PersonaRepository 接口的 GORM 实现。
type personaRepository struct {
	db *gorm.DB
}

// NewPersonaRepository 创建一个新的 PersonaRepository 实例。
func NewPersonaRepository(db *gorm.DB) PersonaRepository {
	return &personaRepository{db: db}
}

// Upsert 写入用户画像。同一用户重复完成引导时覆盖旧画像。
func (r *personaRepository) Upsert(persona *model.Persona) error {
	var existing model.Persona
	err := r.db.Where("user_id = ?", persona.UserID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(persona).Error
	}
	if err != nil {
		return err
	}
	persona.ID = existing.ID
	return r.db.Save(persona).Error
}

// FindByUserID 根据用户 ID 查找画像。
func (r *personaRepository) FindByUserID(userID uint) (*model.Persona, error) {
	var persona model.Persona
	err := r.db.Where("user_id = ?", userID).First(&persona).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPersonaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &persona, nil
}
