package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

const addressNotFound = "Address not found"

// AddressHandler manages the signed-in user's address book.
type AddressHandler struct {
	db       *gorm.DB
	validate *validation.Validator
}

// NewAddressHandler constructs AddressHandler.
func NewAddressHandler(db *gorm.DB, validate *validation.Validator) *AddressHandler {
	return &AddressHandler{db: db, validate: validate}
}

type addressRequest struct {
	Label      string `json:"label" validate:"max=64"`
	Recipient  string `json:"recipient" validate:"required,max=128"`
	Phone      string `json:"phone" validate:"max=32"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2" validate:"max=255"`
	City       string `json:"city" validate:"required,max=128"`
	State      string `json:"state" validate:"max=128"`
	PostalCode string `json:"postalCode" validate:"required,max=32"`
	Country    string `json:"country" validate:"required,max=64"`
	IsDefault  *bool  `json:"isDefault"`
}

func (r *addressRequest) sanitize() {
	for _, field := range []*string{&r.Label, &r.Recipient, &r.Phone, &r.Line1, &r.Line2, &r.City, &r.State, &r.PostalCode, &r.Country} {
		*field = utils.SanitizeInput(*field)
	}
}

func (r *addressRequest) apply(address *models.Address) {
	address.Label = r.Label
	address.Recipient = r.Recipient
	address.Phone = r.Phone
	address.Line1 = r.Line1
	address.Line2 = r.Line2
	address.City = r.City
	address.State = r.State
	address.PostalCode = r.PostalCode
	address.Country = r.Country
}

func (h *AddressHandler) bind(c *fiber.Ctx) (addressRequest, error) {
	var req addressRequest
	if err := parseBody(c, &req); err != nil {
		return req, err
	}
	req.sanitize()
	return req, h.validate.Struct(req)
}

// clearDefaults unsets is_default on the user's addresses other than keep.
func clearDefaults(tx *gorm.DB, userID, keep uuid.UUID) error {
	query := tx.Model(&models.Address{}).Where("user_id = ? AND is_default = ?", userID, true)
	if keep != uuid.Nil {
		query = query.Where("id <> ?", keep)
	}
	return query.Update("is_default", false).Error
}

func findAddress(tx *gorm.DB, userID, id uuid.UUID) (models.Address, error) {
	var address models.Address
	err := tx.First(&address, "id = ? AND user_id = ?", id, userID).Error
	return address, notFound(err, addressNotFound)
}

// ListAddresses returns the user's addresses, default first.
func (h *AddressHandler) ListAddresses(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var addresses []models.Address
	if err := h.db.WithContext(c.UserContext()).
		Where("user_id = ?", userID).
		Order("is_default desc").Order("created_at asc").
		Find(&addresses).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

// GetAddress returns one of the user's addresses.
func (h *AddressHandler) GetAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	address, err := findAddress(h.db.WithContext(c.UserContext()), userID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": address})
}

// CreateAddress adds an address. The first address a user saves becomes the default.
func (h *AddressHandler) CreateAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	req, err := h.bind(c)
	if err != nil {
		return err
	}

	address := models.Address{UserID: userID}
	req.apply(&address)

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Address{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}

		address.IsDefault = boolOr(req.IsDefault, false) || count == 0
		if address.IsDefault {
			if err := clearDefaults(tx, userID, uuid.Nil); err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": address})
}

// UpdateAddress replaces an address. isDefault=true makes it the only default;
// omitting isDefault leaves the flag unchanged.
func (h *AddressHandler) UpdateAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	req, err := h.bind(c)
	if err != nil {
		return err
	}

	var address models.Address
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var err error
		if address, err = findAddress(tx, userID, id); err != nil {
			return err
		}

		req.apply(&address)
		if req.IsDefault != nil {
			if *req.IsDefault {
				if err := clearDefaults(tx, userID, address.ID); err != nil {
					return err
				}
			}
			address.IsDefault = *req.IsDefault
		}
		return tx.Save(&address).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": address})
}

// SetDefaultAddress makes the address the user's only default.
func (h *AddressHandler) SetDefaultAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var address models.Address
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var err error
		if address, err = findAddress(tx, userID, id); err != nil {
			return err
		}
		if err := clearDefaults(tx, userID, address.ID); err != nil {
			return err
		}
		address.IsDefault = true
		return tx.Model(&address).Update("is_default", true).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": address})
}

// DeleteAddress removes an address. Deleting the default promotes the oldest remaining one.
func (h *AddressHandler) DeleteAddress(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		address, err := findAddress(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&address).Error; err != nil {
			return err
		}
		if !address.IsDefault {
			return nil
		}

		var next models.Address
		err = tx.Where("user_id = ?", userID).Order("created_at asc").First(&next).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "Address deleted"})
}
