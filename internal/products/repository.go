package product

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
)

// Repository is checkout's read-only view of the catalog's products table.
// Stock columns are written only through the inventory ledger.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product := new(models.Product)
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// FindByIDs returns the products found for ids keyed by id; unknown ids are
// simply absent. Duplicate ids are queried once.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	found := make(map[uuid.UUID]models.Product, len(unique))
	if len(unique) == 0 {
		return found, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", unique).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		found[row.ID] = row
	}
	return found, nil
}
