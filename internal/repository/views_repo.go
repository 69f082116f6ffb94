package repository

import (
	"context"
	"errors"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

var ErrInvalidInput = errors.New("repository: invalid input")

type ViewRepository interface {
	// Создаёт таблицу счётчиков, если её нет
	EnsureSchema(ctx context.Context) error
	// Увеличивает счётчик просмотров товара на единицу
	Increment(ctx context.Context, v domain.ProductView) error
}
